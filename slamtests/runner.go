package slamtests

import (
	"errors"
	"fmt"

	"github.com/navstack/slam-contract-tests/framework"
	"github.com/navstack/slam-contract-tests/servicedef"
	"github.com/navstack/slam-contract-tests/transport"
)

// ScenarioState identifies where a scenario run is in its lifecycle. A run
// moves strictly forward; Passed and Failed are terminal.
type ScenarioState int

const (
	StateNotStarted ScenarioState = iota
	StateSystemStarting
	StateAwaitingReadiness
	StateSendingRequest
	StateAwaitingResponse
	StatePassed
	StateFailed
)

func (s ScenarioState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateSystemStarting:
		return "SystemStarting"
	case StateAwaitingReadiness:
		return "AwaitingReadiness"
	case StateSendingRequest:
		return "SendingRequest"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StatePassed:
		return "Passed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("ScenarioState(%d)", int(s))
	}
}

// ScenarioEvent is an occurrence that can advance the scenario state.
type ScenarioEvent int

const (
	EventLaunch ScenarioEvent = iota
	EventLaunchFailed
	EventLaunchReturned
	EventReadinessConfirmed
	EventReadinessTimeout
	EventRequestDispatched
	EventEndpointUnavailable
	EventResponseAccepted
	EventResponseRejected
	EventResponseTimeout
	EventCallFailed
)

func (e ScenarioEvent) String() string {
	switch e {
	case EventLaunch:
		return "Launch"
	case EventLaunchFailed:
		return "LaunchFailed"
	case EventLaunchReturned:
		return "LaunchReturned"
	case EventReadinessConfirmed:
		return "ReadinessConfirmed"
	case EventReadinessTimeout:
		return "ReadinessTimeout"
	case EventRequestDispatched:
		return "RequestDispatched"
	case EventEndpointUnavailable:
		return "EndpointUnavailable"
	case EventResponseAccepted:
		return "ResponseAccepted"
	case EventResponseRejected:
		return "ResponseRejected"
	case EventResponseTimeout:
		return "ResponseTimeout"
	case EventCallFailed:
		return "CallFailed"
	default:
		return fmt.Sprintf("ScenarioEvent(%d)", int(e))
	}
}

// transitions is the whole scenario lifecycle; any (state, event) pair not
// listed is invalid.
var transitions = map[ScenarioState]map[ScenarioEvent]ScenarioState{
	StateNotStarted: {
		EventLaunch:       StateSystemStarting,
		EventLaunchFailed: StateFailed, // fixture rejected before anything was launched
	},
	StateSystemStarting: {
		EventLaunchReturned: StateAwaitingReadiness,
		EventLaunchFailed:   StateFailed,
	},
	StateAwaitingReadiness: {
		EventReadinessConfirmed: StateSendingRequest,
		EventReadinessTimeout:   StateFailed,
	},
	StateSendingRequest: {
		EventRequestDispatched:   StateAwaitingResponse,
		EventEndpointUnavailable: StateFailed,
	},
	StateAwaitingResponse: {
		EventResponseAccepted: StatePassed,
		EventResponseRejected: StateFailed,
		EventResponseTimeout:  StateFailed,
		EventCallFailed:       StateFailed,
	},
}

// Transition returns the state that follows s when event e occurs. The
// sequencing rules of a scenario live entirely in this function, so they can
// be checked without standing up a real system under test.
func Transition(s ScenarioState, e ScenarioEvent) (ScenarioState, error) {
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	return s, fmt.Errorf("event %s is not valid in state %s", e, s)
}

// Failure reasons carried on an Outcome, one per distinguishable failure
// mode, so a regression report points at the right part of the system under
// test rather than a generic deadline message.
const (
	ReasonFixtureRejected     = "fixture rejected"
	ReasonLaunchFailed        = "launch failed"
	ReasonReadinessTimeout    = "readiness timeout"
	ReasonEndpointUnavailable = "endpoint unavailable"
	ReasonResponseTimeout     = "response timeout"
	ReasonCallFailed          = "call failed"
	ReasonCorrectionRejected  = "correction rejected"
	ReasonAlreadyRan          = "scenario already ran"
)

// Outcome is the terminal result of one scenario run.
type Outcome struct {
	State  ScenarioState
	Reason string
	Err    error
}

func (o Outcome) Passed() bool {
	return o.State == StatePassed
}

func (o Outcome) String() string {
	if o.Passed() {
		return "passed"
	}
	if o.Err != nil {
		return fmt.Sprintf("%s (%s): %s", o.State, o.Reason, o.Err)
	}
	return fmt.Sprintf("%s (%s)", o.State, o.Reason)
}

// SystemLauncher brings the system under test online for one scenario. The
// process mechanics behind it are out of the harness's view; all it gets
// back is a handle to shut the system down with.
type SystemLauncher interface {
	Launch(params servicedef.StartSessionParams) (SystemHandle, error)
}

// SystemHandle represents a running system under test.
type SystemHandle interface {
	Close() error
}

// RunnerConfig wires one scenario run together.
type RunnerConfig struct {
	Fixture     ScenarioFixture
	BagRoot     string
	Correction  servicedef.Pose
	CallbackURL string
	Launcher    SystemLauncher
	Subscriber  transport.Subscriber
	Rpc         transport.RpcClient
	Logger      framework.Logger
}

// ScenarioRunner executes one relocalization scenario end to end: launch the
// system under test with the fixture's configuration, wait for proof of
// tracking, submit one pose correction, and judge the response. A runner is
// single-shot; a second Run reports failure without touching anything.
type ScenarioRunner struct {
	cfg   RunnerConfig
	state ScenarioState
}

func NewScenarioRunner(cfg RunnerConfig) *ScenarioRunner {
	if cfg.Logger == nil {
		cfg.Logger = framework.NullLogger()
	}
	return &ScenarioRunner{cfg: cfg, state: StateNotStarted}
}

// State reports where the run currently is, or ended.
func (r *ScenarioRunner) State() ScenarioState {
	return r.state
}

// advance applies a transition that the Run sequence guarantees is legal; an
// invalid one here is a sequencing bug, not a scenario failure.
func (r *ScenarioRunner) advance(event ScenarioEvent) {
	next, err := Transition(r.state, event)
	if err != nil {
		panic(err)
	}
	r.cfg.Logger.Printf("scenario state %s -> %s on %s", r.state, next, event)
	r.state = next
}

func (r *ScenarioRunner) fail(event ScenarioEvent, reason string, err error) Outcome {
	r.advance(event)
	return Outcome{State: r.state, Reason: reason, Err: err}
}

// Run executes the scenario and reports its outcome. Each failure mode maps
// to its own reason, and nothing is retried, so a timeout is always visible
// as a timeout rather than masked by a second attempt. The launched system
// is shut down before Run returns, whatever the outcome.
func (r *ScenarioRunner) Run() Outcome {
	if r.state != StateNotStarted {
		return Outcome{
			State:  StateFailed,
			Reason: ReasonAlreadyRan,
			Err:    fmt.Errorf("scenario runner is single-shot and was already in state %s", r.state),
		}
	}

	fixture := r.cfg.Fixture
	if err := fixture.Validate(r.cfg.BagRoot); err != nil {
		return r.fail(EventLaunchFailed, ReasonFixtureRejected, err)
	}
	r.advance(EventLaunch)

	handle, err := r.cfg.Launcher.Launch(fixture.SessionParams(r.cfg.CallbackURL))
	if err != nil {
		return r.fail(EventLaunchFailed, ReasonLaunchFailed, err)
	}
	defer func() {
		if err := handle.Close(); err != nil {
			r.cfg.Logger.Printf("shutting down system under test: %s", err)
		}
	}()
	r.advance(EventLaunchReturned)

	waiter := NewReadinessWaiter(r.cfg.Subscriber, r.cfg.Logger)
	signal, ok := waiter.WaitForSignal(fixture.OdometryChannel(), fixture.ReadinessTimeout())
	if !ok {
		return r.fail(EventReadinessTimeout, ReasonReadinessTimeout,
			fmt.Errorf("no pose estimate on %s within %s", fixture.OdometryChannel(), fixture.ReadinessTimeout()))
	}
	r.cfg.Logger.Printf("tracking confirmed at %s", signal.FirstObservedAt.Format("15:04:05.000"))
	r.advance(EventReadinessConfirmed)

	client := NewControlPlaneClient(r.cfg.Rpc, r.cfg.Logger)
	resp, err := client.SetSlamPose(
		fixture.SetSlamPoseEndpoint(),
		r.cfg.Correction,
		fixture.AvailabilityTimeout(),
		fixture.ResponseTimeout(),
	)

	var unavailable *transport.EndpointUnavailableError
	if errors.As(err, &unavailable) {
		return r.fail(EventEndpointUnavailable, ReasonEndpointUnavailable, err)
	}
	r.advance(EventRequestDispatched)

	var timedOut *transport.ResponseTimeoutError
	switch {
	case errors.As(err, &timedOut):
		return r.fail(EventResponseTimeout, ReasonResponseTimeout, err)
	case err != nil:
		return r.fail(EventCallFailed, ReasonCallFailed, err)
	case !resp.Success:
		return r.fail(EventResponseRejected, ReasonCorrectionRejected,
			fmt.Errorf("service reported success == false for the pose correction"))
	}
	r.advance(EventResponseAccepted)
	return Outcome{State: r.state}
}
