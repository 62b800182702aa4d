package mqtt

// bufferedMsg is a formatted message waiting for the broker to come back.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer holds the newest messages published while offline, oldest first.
// The caller synchronizes access.
type ringBuffer struct {
	slots    []bufferedMsg
	oldest   int
	count    int
	dropping bool
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{slots: make([]bufferedMsg, max(capacity, 1))}
}

// push stores msg, evicting the oldest message when full. It returns true only
// for the first eviction since the last drain so the caller can warn once.
func (r *ringBuffer) push(msg bufferedMsg) bool {
	size := len(r.slots)
	if r.count < size {
		r.slots[(r.oldest+r.count)%size] = msg
		r.count++
		return false
	}

	r.slots[r.oldest] = msg
	r.oldest = (r.oldest + 1) % size
	first := !r.dropping
	r.dropping = true
	return first
}

// drainAll empties the buffer and returns its messages in publish order.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	out := make([]bufferedMsg, 0, r.count)
	for i := range r.count {
		out = append(out, r.slots[(r.oldest+i)%len(r.slots)])
	}
	clear(r.slots)
	r.oldest, r.count, r.dropping = 0, 0, false
	return out
}

func (r *ringBuffer) len() int { return r.count }
