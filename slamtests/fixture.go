package slamtests

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
	"gopkg.in/yaml.v3"

	"github.com/navstack/slam-contract-tests/servicedef"
)

// Default bounds for scenarios that do not override them. The availability
// bound matches what the service contract documents for control-plane
// registration; readiness is dominated by replay startup and model warm-up,
// which on a cold GPU can take most of a minute.
const (
	DefaultReadinessTimeout    = time.Second * 60
	DefaultAvailabilityTimeout = time.Second * 20
	DefaultResponseTimeout     = time.Second * 10
)

// ScenarioFixture declares everything needed to bring the system under test
// online for one scenario: which recorded sensor log to replay, the
// namespace the system's channels and endpoints live under, and the launch
// parameters to override when the session starts. A fixture is assembled or
// loaded once per scenario and is read-only afterward.
//
// All timeout fields are in seconds; zero means the default bound.
type ScenarioFixture struct {
	Name      string            `yaml:"name"`
	Namespace string            `yaml:"namespace"`
	SensorLog string            `yaml:"sensorLog"`
	Overrides map[string]string `yaml:"overrides,omitempty"`

	ReadinessTimeoutSec    int `yaml:"readinessTimeoutSec,omitempty"`
	AvailabilityTimeoutSec int `yaml:"availabilityTimeoutSec,omitempty"`
	ResponseTimeoutSec     int `yaml:"responseTimeoutSec,omitempty"`

	// Optional replay tuning passed through to the test service.
	ReplayRatePercent   int `yaml:"replayRatePercent,omitempty"`
	ReplayStartOffsetMS int `yaml:"replayStartOffsetMs,omitempty"`

	// Correction overrides the pose sent by relocalization scenarios loaded
	// from a scenario file. Nil means the stock correction pose.
	Correction *servicedef.Pose `yaml:"correction,omitempty"`
}

// FixtureError means the scenario configuration itself is unusable, most
// commonly a sensor-log reference that does not exist. It is fatal to the
// scenario and nothing is launched.
type FixtureError struct {
	Scenario string
	Reason   string
}

func (e *FixtureError) Error() string {
	return fmt.Sprintf("scenario %q has an unusable fixture: %s", e.Scenario, e.Reason)
}

// Validate checks that the fixture's sensor-log reference resolves to a
// directory under bagRoot. This is the only validation done before launch;
// everything else about the fixture is data the test service interprets.
func (f ScenarioFixture) Validate(bagRoot string) error {
	if f.SensorLog == "" {
		return &FixtureError{Scenario: f.Name, Reason: "no sensor log reference"}
	}
	info, err := os.Stat(filepath.Join(bagRoot, f.SensorLog))
	if err != nil || !info.IsDir() {
		return &FixtureError{
			Scenario: f.Name,
			Reason:   fmt.Sprintf("sensor log %q not found under %s", f.SensorLog, bagRoot),
		}
	}
	return nil
}

func (f ScenarioFixture) ReadinessTimeout() time.Duration {
	return secondsOr(f.ReadinessTimeoutSec, DefaultReadinessTimeout)
}

func (f ScenarioFixture) AvailabilityTimeout() time.Duration {
	return secondsOr(f.AvailabilityTimeoutSec, DefaultAvailabilityTimeout)
}

func (f ScenarioFixture) ResponseTimeout() time.Duration {
	return secondsOr(f.ResponseTimeoutSec, DefaultResponseTimeout)
}

func secondsOr(sec int, fallback time.Duration) time.Duration {
	if sec <= 0 {
		return fallback
	}
	return time.Duration(sec) * time.Second
}

// OdometryChannel is the pose-estimate channel for this scenario's session.
func (f ScenarioFixture) OdometryChannel() string {
	return f.Namespace + "/visual_slam/tracking/odometry"
}

// SetSlamPoseEndpoint is the control-plane endpoint for pose corrections.
func (f ScenarioFixture) SetSlamPoseEndpoint() string {
	return f.Namespace + "/visual_slam/set_slam_pose"
}

// SaveMapEndpoint is the control-plane endpoint for persisting the map.
func (f ScenarioFixture) SaveMapEndpoint() string {
	return f.Namespace + "/visual_slam/save_map"
}

// CorrectionPose is the pose a relocalization scenario submits: the
// fixture's own if it declares one, otherwise the stock correction.
func (f ScenarioFixture) CorrectionPose() servicedef.Pose {
	if f.Correction != nil {
		return *f.Correction
	}
	return servicedef.Pose{
		Position:    servicedef.Vector3{X: 1.0, Y: 2.0, Z: 3.0},
		Orientation: servicedef.IdentityOrientation(),
	}
}

// SessionParams assembles the launch configuration for this fixture. The
// run tag combines the fixture name with a fresh UUID so service-side logs
// can be correlated with one specific scenario execution.
func (f ScenarioFixture) SessionParams(callbackURL string) servicedef.StartSessionParams {
	var overrides map[string]string
	if len(f.Overrides) > 0 {
		overrides = make(map[string]string, len(f.Overrides))
		for k, v := range f.Overrides {
			overrides[k] = v
		}
	}
	p := servicedef.StartSessionParams{
		Tag:         f.Name + "-" + uuid.NewString(),
		Namespace:   f.Namespace,
		SensorLog:   f.SensorLog,
		Overrides:   overrides,
		CallbackURL: callbackURL,
	}
	if f.ReplayRatePercent > 0 {
		p.ReplayRatePercent = ldvalue.NewOptionalInt(f.ReplayRatePercent)
	}
	if f.ReplayStartOffsetMS > 0 {
		p.ReplayStartOffsetMS = ldvalue.NewOptionalInt(f.ReplayStartOffsetMS)
	}
	return p
}

// RelocalizationFixture is the stock scenario: replay the r2b_galileo log
// with a prebuilt cuVSLAM map loaded, so the service can accept an external
// pose correction against that map.
func RelocalizationFixture() ScenarioFixture {
	return ScenarioFixture{
		Name:      "relocalize-in-prebuilt-map",
		Namespace: "/visual_slam_test_srv_set_slam_pose",
		SensorLog: "r2b_galileo",
		Overrides: map[string]string{
			"load_map_folder_path": "r2b_galileo/cuvslam_map",
		},
	}
}

// TrackingFixture drives the proof-of-life scenario: no map, just replay
// and confirm that pose estimates flow.
func TrackingFixture() ScenarioFixture {
	return ScenarioFixture{
		Name:      "tracking-proof-of-life",
		Namespace: "/visual_slam_test_pol",
		SensorLog: "r2b_galileo",
	}
}

// MapPersistenceFixture drives the save-map scenario: build a map from the
// replay and ask the service to persist it.
func MapPersistenceFixture() ScenarioFixture {
	return ScenarioFixture{
		Name:      "save-map-after-tracking",
		Namespace: "/visual_slam_test_srv_save_map",
		SensorLog: "r2b_galileo",
	}
}

// LoadScenarioFile reads one scenario fixture from a YAML document.
func LoadScenarioFile(path string) (ScenarioFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScenarioFixture{}, err
	}
	var f ScenarioFixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return ScenarioFixture{}, fmt.Errorf("parsing scenario file %s: %w", path, err)
	}
	if f.Name == "" || f.Namespace == "" || f.SensorLog == "" {
		return ScenarioFixture{}, fmt.Errorf("scenario file %s must set name, namespace and sensorLog", path)
	}
	return f, nil
}

// LoadScenarioDir loads every scenario file (*.yaml or *.yml) in dir, in
// file-name order.
func LoadScenarioDir(dir string) ([]ScenarioFixture, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var fixtures []ScenarioFixture
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		f, err := LoadScenarioFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, nil
}
