package connio

// FrameQueue is the connection-wide FIFO of frames deferred during a
// SimpleRPC call that did not match the request in progress — the Go
// re-expression of amqp_connection_state_t's first_queued_frame /
// last_queued_frame linked list in amqp_socket.c. Frames are dequeued in
// the same order they were received, regardless of which channel a later
// WaitFrame call is interested in (matching amqp_simple_wait_frame_noblock's
// unconditional "pop the head" behavior).
type FrameQueue struct {
	frames []QueuedFrame
}

// Enqueue appends a frame to the tail of the queue.
func (q *FrameQueue) Enqueue(f QueuedFrame) {
	q.frames = append(q.frames, f)
}

// Dequeue pops the frame at the head of the queue, if any.
func (q *FrameQueue) Dequeue() (QueuedFrame, bool) {
	if len(q.frames) == 0 {
		return QueuedFrame{}, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

// Len reports how many frames are queued — amqp_frames_enqueued's
// equivalent (spec.md §6.4).
func (q *FrameQueue) Len() int {
	return len(q.frames)
}
