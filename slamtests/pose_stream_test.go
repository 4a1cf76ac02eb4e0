package slamtests

import (
	"testing"
	"time"

	"github.com/navstack/slam-contract-tests/framework"
	"github.com/navstack/slam-contract-tests/transport/transporttest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoseStreamDecodesEstimatesInOrder(t *testing.T) {
	bus := transporttest.NewBus()
	stream := NewPoseStream(bus, readinessTestChannel, framework.NullLogger())
	defer stream.Close()

	bus.Publish(readinessTestChannel, []byte(`{"pose": {"position": {"x": 1.5}}, "seq": 41, "frame": "odom", "timestampMs": 100}`))
	bus.Publish(readinessTestChannel, []byte(`{"pose": {"position": {"x": 2.5}}, "seq": 42, "frame": "odom", "timestampMs": 133}`))

	first, err := stream.Next(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 41, first.Seq)
	assert.Equal(t, 1.5, first.Pose.Position.X)
	assert.Equal(t, "odom", first.Frame)
	assert.Equal(t, int64(100), first.TimestampMS)

	second, err := stream.Next(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 42, second.Seq)
	assert.Equal(t, 2.5, second.Pose.Position.X)
}

func TestPoseStreamFallsBackToTransportSeq(t *testing.T) {
	bus := transporttest.NewBus()
	stream := NewPoseStream(bus, readinessTestChannel, framework.NullLogger())
	defer stream.Close()

	// no seq in the body; the delivery path's sequence number stands in
	bus.Publish(readinessTestChannel, []byte(`{"pose": {}}`))
	est, err := stream.Next(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, est.Seq)
}

func TestPoseStreamTimesOutWhenNothingArrives(t *testing.T) {
	bus := transporttest.NewBus()
	stream := NewPoseStream(bus, readinessTestChannel, framework.NullLogger())
	defer stream.Close()

	started := time.Now()
	_, err := stream.Next(time.Millisecond * 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pose estimate")
	assert.GreaterOrEqual(t, time.Since(started), time.Millisecond*100)
}

func TestPoseStreamReportsMalformedEstimates(t *testing.T) {
	bus := transporttest.NewBus()
	stream := NewPoseStream(bus, readinessTestChannel, framework.NullLogger())
	defer stream.Close()

	bus.Publish(readinessTestChannel, []byte(`this is not JSON`))
	_, err := stream.Next(time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed pose estimate")
}

func TestPoseStreamCloseReleasesItsSubscription(t *testing.T) {
	bus := transporttest.NewBus()
	stream := NewPoseStream(bus, readinessTestChannel, framework.NullLogger())
	require.Equal(t, 1, bus.OpenSubscriptions())
	stream.Close()
	assert.Equal(t, 0, bus.OpenSubscriptions())
}
