package mqtt

import (
	"testing"
)

func pushN(rb *ringBuffer, from, to int) {
	for i := from; i < to; i++ {
		rb.push(bufferedMsg{topic: TopicEvents, payload: []byte{byte(i)}})
	}
}

func payloads(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferOrder(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushed   int
		want     []byte
	}{
		{"partial", 10, 5, []byte{0, 1, 2, 3, 4}},
		{"full", 5, 5, []byte{0, 1, 2, 3, 4}},
		{"overflow keeps newest", 5, 8, []byte{3, 4, 5, 6, 7}},
		{"wraps twice", 3, 7, []byte{4, 5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newRingBuffer(tt.capacity)
			pushN(rb, 0, tt.pushed)
			got := payloads(rb.drainAll())
			if string(got) != string(tt.want) {
				t.Errorf("drained %v, want %v", got, tt.want)
			}
			if rb.len() != 0 {
				t.Errorf("len after drain = %d", rb.len())
			}
		})
	}
}

func TestRingBufferReportsFirstDrop(t *testing.T) {
	rb := newRingBuffer(2)
	pushN(rb, 0, 2)

	if !rb.push(bufferedMsg{}) {
		t.Error("first overflow should report a drop")
	}
	if rb.push(bufferedMsg{}) {
		t.Error("second overflow should not report again")
	}

	rb.drainAll()
	pushN(rb, 0, 2)
	if !rb.push(bufferedMsg{}) {
		t.Error("overflow after drain should report again")
	}
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)

	pushN(rb, 0, 3)
	if got := rb.drainAll(); len(got) != 3 {
		t.Fatalf("cycle 1: expected 3 items, got %d", len(got))
	}

	pushN(rb, 10, 14)
	got := payloads(rb.drainAll())
	if string(got) != string([]byte{10, 11, 12, 13}) {
		t.Errorf("cycle 2: drained %v", got)
	}
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	rb := newRingBuffer(0)
	pushN(rb, 0, 3)
	got := payloads(rb.drainAll())
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("drained %v, want [2]", got)
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10)
	rb.push(bufferedMsg{
		topic:    TopicSystem,
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})

	got := rb.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	m := got[0]
	if m.topic != TopicSystem || string(m.payload) != `{"test":true}` || m.qos != 1 || !m.retained {
		t.Errorf("message = %+v", m)
	}
}
