package slamtests

import (
	"time"

	"github.com/navstack/slam-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func DoTrackingTests(t *T) {
	t.Run("emits an ordered pose stream while a recording plays", func(t *T) {
		t.RequireCapability(servicedef.CapabilityPoseStream)

		fixture := TrackingFixture()
		// subscribe before launching so the first estimates are not missed
		stream := t.SubscribePoses(fixture.OdometryChannel())
		defer stream.Close()

		t.StartSession(fixture)

		first, err := stream.Next(fixture.ReadinessTimeout())
		require.NoError(t, err)
		t.Debug("first pose estimate: seq=%d position=(%g, %g, %g)", first.Seq,
			first.Pose.Position.X, first.Pose.Position.Y, first.Pose.Position.Z)

		lastSeq := first.Seq
		lastTimestamp := first.TimestampMS
		for i := 0; i < 4; i++ {
			est, err := stream.Next(awaitEstimateTimeout)
			require.NoError(t, err)
			assert.Greater(t, est.Seq, lastSeq, "pose estimates arrived out of order")
			assert.GreaterOrEqual(t, est.TimestampMS, lastTimestamp, "pose estimate timestamps went backwards")
			assert.InDelta(t, 1.0, est.Pose.Orientation.Norm(), 0.01, "orientation quaternion is not normalized")
			lastSeq = est.Seq
			lastTimestamp = est.TimestampMS
		}
	})

	t.Run("replay pauses and resumes on command", func(t *T) {
		t.RequireCapability(servicedef.CapabilityPoseStream)
		t.RequireCapability(servicedef.CapabilityReplayControl)

		fixture := TrackingFixture()
		stream := t.SubscribePoses(fixture.OdometryChannel())
		defer stream.Close()

		t.StartSession(fixture)

		_, err := stream.Next(fixture.ReadinessTimeout())
		require.NoError(t, err)

		t.PauseReplay()
		// drain whatever was in flight until the stream goes quiet
		quiet := false
		for i := 0; i < 30; i++ {
			if _, err := stream.Next(time.Second * 2); err != nil {
				quiet = true
				break
			}
		}
		require.True(t, quiet, "pose estimates kept arriving after the replay was paused")

		t.ResumeReplay()
		_, err = stream.Next(awaitEstimateTimeout)
		require.NoError(t, err, "no pose estimate after resuming the replay")
	})
}
