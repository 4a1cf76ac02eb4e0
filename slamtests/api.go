package slamtests

import (
	"fmt"
	"time"

	"github.com/navstack/slam-contract-tests/framework"
	"github.com/navstack/slam-contract-tests/servicedef"
	"github.com/navstack/slam-contract-tests/transport"

	"github.com/stretchr/testify/require"
)

const awaitEstimateTimeout = time.Second * 10

var AllCapabilities = []string{
	servicedef.CapabilitySetSlamPose,
	servicedef.CapabilityPoseStream,
	servicedef.CapabilitySaveMap,
	servicedef.CapabilityReplayControl,
}

// suiteEnv is the environment shared by every test in one suite run: the
// harness that talks to the test service, and the local paths the fixtures
// are resolved against.
type suiteEnv struct {
	harness     *framework.TestHarness
	bagRoot     string
	scenarioDir string
}

// T represents a test or subtest in our SLAM regression suite.
//
// It implements the same basic functionality as Go's testing.T, but in an
// environment that is outside of the Go test runner, and with some extra
// features such as debug logging that are convenient for our use case. Those
// features are provided by our lower-level framework package.
//
// It also provides functionality that is specific to SLAM testing. Every T
// instance maintains a pose-stream subscriber listening on the harness's own
// HTTP endpoint, and a control-plane client pointed at the test service. It
// has methods for launching sessions and interacting with both of those.
//
// To make test assertions, you can use the assert and require packages,
// passing the *T as if it were a *testing.T. There are also assertions built
// into many of the session interaction methods, causing the test to
// immediately fail if something unexpected happens, to reduce the amount of
// boilerplate logic in tests.
type T struct {
	context    *framework.Context
	env        *suiteEnv
	subscriber *transport.CallbackSubscriber
	rpc        *transport.ServiceRpcClient
	session    SystemHandle
}

func newTestScope(context *framework.Context, env *suiteEnv) *T {
	t := &T{
		context: context,
		env:     env,
	}
	t.subscriber = transport.NewCallbackSubscriber(env.harness, context.DebugLogger())
	t.rpc = transport.NewServiceRpcClient(env.harness.ServiceBaseURL(), context.DebugLogger())
	return t
}

func (t *T) close() {
	if t.session != nil {
		t.session.Close()
	}
	if t.subscriber != nil {
		t.subscriber.Close()
	}
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest. This is equivalent to the Run method of testing.T.
//
// The specified function receives a new T instance, with its own pose-stream
// subscriber and control-plane client.
func (t *T) Run(name string, action func(*T)) {
	var t1 *T
	t.context.Run(name, func(c *framework.Context) {
		t1 = newTestScope(c, t.env)
		action(t1)
	})
	if t1 != nil {
		t1.close()
	}
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// Defer schedules a cleanup to run when this test or subtest ends, after the
// test's own logic and in reverse order of registration.
func (t *T) Defer(cleanup func()) {
	t.context.Defer(cleanup)
}

// SkipWithReason skips this test, with a message explaining why.
func (t *T) SkipWithReason(reason string) {
	t.context.SkipWithReason(reason)
}

// RequireCapability skips this test if the test service did not declare that it supports the
// specified capability.
func (t *T) RequireCapability(capability string) {
	if !t.env.harness.TestServiceHasCapability(capability) {
		t.context.SkipWithReason(fmt.Sprintf("test service does not have capability %q", capability))
	}
}

// NewRunner builds a ScenarioRunner wired to this test's subscriber and
// control-plane client, ready to execute the fixture's scenario end to end.
func (t *T) NewRunner(fixture ScenarioFixture, correction servicedef.Pose) *ScenarioRunner {
	return NewScenarioRunner(RunnerConfig{
		Fixture:     fixture,
		BagRoot:     t.env.bagRoot,
		Correction:  correction,
		CallbackURL: t.subscriber.BaseURL(),
		Launcher:    NewHTTPLauncher(t.env.harness, t.context.DebugLogger()),
		Subscriber:  t.subscriber,
		Rpc:         t.rpc,
		Logger:      t.context.DebugLogger(),
	})
}

// StartSession tells the test service to launch the SLAM stack configured by
// the fixture, with pose estimates routed back to this test's subscriber.
// The session is shut down automatically when the test ends.
//
// The test fails and immediately exits if the fixture is unusable or the
// launch is refused.
func (t *T) StartSession(fixture ScenarioFixture) {
	require.NoError(t, fixture.Validate(t.env.bagRoot))
	launcher := NewHTTPLauncher(t.env.harness, t.context.DebugLogger())
	handle, err := launcher.Launch(fixture.SessionParams(t.subscriber.BaseURL()))
	require.NoError(t, err)
	t.session = handle
}

func (t *T) requireSessionStarted() {
	require.NotNil(t, t.session, "test tried to interact with the system under test before starting a session")
}

// EndSession stops the current session now rather than at the end of the
// test, so that the test can start another one.
func (t *T) EndSession() {
	t.requireSessionStarted()
	require.NoError(t, t.session.Close())
	t.session = nil
}

// RequireReadiness waits until the session proves it is tracking by emitting
// a pose estimate on the fixture's odometry channel.
//
// The test fails and immediately exits if the readiness bound elapses first.
func (t *T) RequireReadiness(fixture ScenarioFixture) ReadinessSignal {
	t.requireSessionStarted()
	waiter := NewReadinessWaiter(t.subscriber, t.context.DebugLogger())
	signal, ok := waiter.WaitForSignal(fixture.OdometryChannel(), fixture.ReadinessTimeout())
	if !ok {
		require.Fail(t, "system under test never became ready",
			"no pose estimate on %s within %s", fixture.OdometryChannel(), fixture.ReadinessTimeout())
	}
	return signal
}

// SubscribePoses attaches a decoded pose-estimate stream to the channel.
// Subscribe before StartSession if the test must not miss early estimates.
func (t *T) SubscribePoses(channel string) *PoseStream {
	return NewPoseStream(t.subscriber, channel, t.context.DebugLogger())
}

// sessionCommander is implemented by session handles that accept commands
// while the session is running; *framework.TestServiceEntity does.
type sessionCommander interface {
	SendCommand(command string, additionalParams ...map[string]interface{}) error
}

func (t *T) sendSessionCommand(command string) {
	t.requireSessionStarted()
	commander, ok := t.session.(sessionCommander)
	require.True(t, ok, "session handle does not accept commands")
	require.NoError(t, commander.SendCommand(command))
}

// PauseReplay suspends the current session's sensor-log replay. Estimates
// already in flight may still arrive after it returns.
func (t *T) PauseReplay() {
	t.sendSessionCommand("pause")
}

// ResumeReplay restarts a replay that PauseReplay suspended.
func (t *T) ResumeReplay() {
	t.sendSessionCommand("resume")
}

// SaveMap asks the running session to persist its map to the given folder on
// the service side, failing the test if the call itself cannot be completed.
// Whether the service reports success is up to the caller to check.
func (t *T) SaveMap(fixture ScenarioFixture, mapFolderPath string) servicedef.SaveMapResponse {
	t.requireSessionStarted()
	client := NewControlPlaneClient(t.rpc, t.context.DebugLogger())
	resp, err := client.SaveMap(fixture.SaveMapEndpoint(), mapFolderPath,
		fixture.AvailabilityTimeout(), fixture.ResponseTimeout())
	require.NoError(t, err)
	return resp
}
