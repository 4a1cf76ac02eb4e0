package slamtests

import (
	"time"

	"github.com/navstack/slam-contract-tests/servicedef"
	"github.com/navstack/slam-contract-tests/transport"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func DoRelocalizationTests(t *T) {
	t.Run("accepts pose correction against prebuilt map", func(t *T) {
		t.RequireCapability(servicedef.CapabilitySetSlamPose)

		fixture := RelocalizationFixture()
		runner := t.NewRunner(fixture, fixture.CorrectionPose())
		outcome := runner.Run()
		require.True(t, outcome.Passed(), "scenario failed (%s): %s", outcome.Reason, outcome.Err)
		assert.Equal(t, StatePassed, runner.State())

		// the runner is single-shot; a rerun must refuse rather than resend
		again := runner.Run()
		assert.False(t, again.Passed())
		assert.Equal(t, ReasonAlreadyRan, again.Reason)
	})

	t.Run("rejects a fixture whose sensor log is missing", func(t *T) {
		fixture := RelocalizationFixture()
		fixture.SensorLog = "no_such_recording"

		runner := t.NewRunner(fixture, fixture.CorrectionPose())
		outcome := runner.Run()

		require.Equal(t, StateFailed, outcome.State)
		assert.Equal(t, ReasonFixtureRejected, outcome.Reason)
		var fixtureErr *FixtureError
		require.ErrorAs(t, outcome.Err, &fixtureErr)
		assert.Equal(t, fixture.Name, fixtureErr.Scenario)
	})

	t.Run("reports unavailability without dispatching when the control plane never appears", func(t *T) {
		t.RequireCapability(servicedef.CapabilitySetSlamPose)

		deadEndpoint := t.env.harness.NewMockEndpoint(httphelpers.HandlerWithStatus(404), t.context.DebugLogger())
		t.Defer(deadEndpoint.Close)

		fixture := RelocalizationFixture()
		fixture.AvailabilityTimeoutSec = 2

		runner := NewScenarioRunner(RunnerConfig{
			Fixture:     fixture,
			BagRoot:     t.env.bagRoot,
			Correction:  fixture.CorrectionPose(),
			CallbackURL: t.subscriber.BaseURL(),
			Launcher:    NewHTTPLauncher(t.env.harness, t.context.DebugLogger()),
			Subscriber:  t.subscriber,
			Rpc:         transport.NewServiceRpcClient(deadEndpoint.BaseURL(), t.context.DebugLogger()),
			Logger:      t.context.DebugLogger(),
		})
		outcome := runner.Run()

		require.Equal(t, StateFailed, outcome.State)
		assert.Equal(t, ReasonEndpointUnavailable, outcome.Reason)
		var unavailable *transport.EndpointUnavailableError
		require.ErrorAs(t, outcome.Err, &unavailable)
		assert.Equal(t, fixture.SetSlamPoseEndpoint(), unavailable.Endpoint)

		// every request the endpoint saw must be an availability probe
		for {
			cxn, err := deadEndpoint.AwaitConnection(time.Millisecond * 100)
			if err != nil {
				break
			}
			assert.Equal(t, "GET", cxn.Method,
				"a request was dispatched to an endpoint that never became available")
		}
	})

	t.Run("scenario packs", func(t *T) {
		if t.env.scenarioDir == "" {
			t.SkipWithReason("no scenario directory was given")
		}
		fixtures, err := LoadScenarioDir(t.env.scenarioDir)
		require.NoError(t, err)
		if len(fixtures) == 0 {
			t.SkipWithReason("scenario directory has no scenario files")
		}
		for _, fixture := range fixtures {
			t.Run(fixture.Name, func(t *T) {
				t.RequireCapability(servicedef.CapabilitySetSlamPose)
				runner := t.NewRunner(fixture, fixture.CorrectionPose())
				outcome := runner.Run()
				require.True(t, outcome.Passed(), "scenario failed (%s): %s", outcome.Reason, outcome.Err)
			})
		}
	})
}
