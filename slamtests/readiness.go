package slamtests

import (
	"time"

	"github.com/navstack/slam-contract-tests/framework"
	"github.com/navstack/slam-contract-tests/transport"
)

// ReadinessSignal records that the system under test produced a pose
// estimate, and when the harness observed it.
type ReadinessSignal struct {
	Channel         string
	Seq             int
	FirstObservedAt time.Time
}

// ReadinessWaiter watches a pose-estimate channel for proof that the system
// under test has initialized and begun tracking. Replay startup and model
// warm-up make that moment unpredictable, so readiness is defined purely as
// message arrival within an explicit bound, not as any launch milestone.
type ReadinessWaiter struct {
	subscriber transport.Subscriber
	logger     framework.Logger
}

func NewReadinessWaiter(subscriber transport.Subscriber, logger framework.Logger) *ReadinessWaiter {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &ReadinessWaiter{subscriber: subscriber, logger: logger}
}

// WaitForSignal blocks until at least one message is observed on the channel
// or the timeout elapses. Timing out is a normal failing outcome, reported
// as ok == false, never as an error. The subscription is released before
// WaitForSignal returns, on every path.
func (w *ReadinessWaiter) WaitForSignal(channel string, timeout time.Duration) (signal ReadinessSignal, ok bool) {
	sub := w.subscriber.Subscribe(channel)
	defer sub.Close()

	w.logger.Printf("waiting up to %s for a message on %s", timeout, channel)
	msg, ok := sub.Await(timeout)
	if !ok {
		w.logger.Printf("no message on %s within %s", channel, timeout)
		return ReadinessSignal{}, false
	}
	w.logger.Printf("first message on %s observed (seq %d)", channel, msg.Seq)
	return ReadinessSignal{
		Channel:         channel,
		Seq:             msg.Seq,
		FirstObservedAt: msg.ReceivedAt,
	}, true
}
