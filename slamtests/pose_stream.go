package slamtests

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/navstack/slam-contract-tests/framework"
	"github.com/navstack/slam-contract-tests/servicedef"
	"github.com/navstack/slam-contract-tests/transport"
)

// PoseStream reads a channel of pose estimates as decoded values rather than
// raw callbacks. Estimates arrive in sequence order; any that the service
// emitted before Subscribe took effect are gone and will not be replayed.
type PoseStream struct {
	channel string
	sub     transport.Subscription
	logger  framework.Logger
}

func NewPoseStream(subscriber transport.Subscriber, channel string, logger framework.Logger) *PoseStream {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &PoseStream{
		channel: channel,
		sub:     subscriber.Subscribe(channel),
		logger:  logger,
	}
}

// Next returns the next pose estimate, waiting up to timeout for one to
// arrive. An estimate that does not decode is an error, not a skip: a
// malformed message on this channel means the service's output is broken.
func (s *PoseStream) Next(timeout time.Duration) (servicedef.PoseEstimate, error) {
	msg, ok := s.sub.Await(timeout)
	if !ok {
		return servicedef.PoseEstimate{}, fmt.Errorf("no pose estimate on %s within %s", s.channel, timeout)
	}
	var est servicedef.PoseEstimate
	if err := json.Unmarshal(msg.Data, &est); err != nil {
		return servicedef.PoseEstimate{}, fmt.Errorf("malformed pose estimate on %s: %s", s.channel, err)
	}
	if est.Seq == 0 {
		est.Seq = msg.Seq
	}
	return est, nil
}

func (s *PoseStream) Close() {
	s.sub.Close()
}
