package transport

import (
	"sort"
	"sync"
)

// SequenceBuffer re-orders messages that carry a per-channel sequence number
// but may be delivered concurrently. The test service sends each pose
// estimate in its own HTTP request, so a later estimate can overtake an
// earlier one in flight; consumers read them back in ascending sequence
// order from C.
//
// A live pose stream can be joined mid-flight, so there is no fixed starting
// sequence number: the first accepted message establishes the watermark.
// After that, anything at or below the watermark is dropped as stale rather
// than deferred forever, and anything ahead of the next expected number is
// held until the gap fills in.
//
// Delivery into C never blocks. If the consumer stops draining and the
// buffer fills, new messages are dropped; a live stream has no replay
// obligation.
type SequenceBuffer struct {
	C         chan Message
	watermark int
	started   bool
	closed    bool
	pending   []Message
	dropped   int
	lock      sync.Mutex
	closeOnce sync.Once
}

func NewSequenceBuffer(channelSize int) *SequenceBuffer {
	return &SequenceBuffer{C: make(chan Message, channelSize)}
}

// Accept takes one delivered message and emits, in ascending order, every
// message that is now contiguous with the watermark.
func (b *SequenceBuffer) Accept(msg Message) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return
	}
	if !b.started {
		b.started = true
		b.watermark = msg.Seq - 1
	}
	if msg.Seq <= b.watermark {
		return // stale: something at or past this point was already emitted
	}
	if msg.Seq > b.watermark+1 {
		b.pending = append(b.pending, msg)
		sort.Slice(b.pending, func(i, j int) bool { return b.pending[i].Seq < b.pending[j].Seq })
		return
	}
	b.emit(msg)
	for len(b.pending) > 0 {
		next := b.pending[0]
		if next.Seq <= b.watermark { // duplicate that was deferred before its twin arrived
			b.pending = b.pending[1:]
			continue
		}
		if next.Seq != b.watermark+1 {
			break
		}
		b.pending = b.pending[1:]
		b.emit(next)
	}
}

func (b *SequenceBuffer) emit(msg Message) {
	b.watermark = msg.Seq
	select {
	case b.C <- msg:
	default:
		b.dropped++
	}
}

// Pending returns the messages currently held back waiting for a sequence
// gap to fill, in ascending order.
func (b *SequenceBuffer) Pending() []Message {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Message(nil), b.pending...)
}

// Dropped returns how many messages were discarded because the consumer was
// not keeping up.
func (b *SequenceBuffer) Dropped() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.dropped
}

// Close closes C. Messages accepted after Close are discarded.
func (b *SequenceBuffer) Close() {
	b.closeOnce.Do(func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		b.closed = true
		close(b.C)
	})
}
