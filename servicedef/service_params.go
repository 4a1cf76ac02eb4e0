// Package servicedef defines the JSON wire types shared between the harness
// and localization test services: session-creation parameters and the
// control-plane request/response bodies. Anything here is part of the test
// service contract; renaming a field is a protocol change.
package servicedef

import "gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

// Capability names a test service may advertise in its status resource.
// Tests that need a capability the service did not list are skipped.
const (
	CapabilitySetSlamPose   = "set-slam-pose"
	CapabilityPoseStream    = "pose-stream"
	CapabilitySaveMap       = "save-map"
	CapabilityReplayControl = "replay-control"
)

// StartSessionParams is the body POSTed to the test service root to start
// one replay session of the system under test.
//
// Overrides are launch parameters applied on top of the service's defaults;
// path-valued overrides, like load_map_folder_path, are relative to the
// service's own sensor-log root so the harness and service need not share a
// filesystem. CallbackURL is where the service must POST each pose estimate,
// appending the channel path and a per-channel sequence number.
type StartSessionParams struct {
	Tag                 string              `json:"tag"`
	Namespace           string              `json:"namespace"`
	SensorLog           string              `json:"sensorLog"`
	Overrides           map[string]string   `json:"overrides,omitempty"`
	CallbackURL         string              `json:"callbackUrl"`
	ReplayRatePercent   ldvalue.OptionalInt `json:"replayRatePercent,omitempty"`
	ReplayStartOffsetMS ldvalue.OptionalInt `json:"replayStartOffsetMs,omitempty"`
}

// SetSlamPoseRequest asks the system under test to relocalize at the given
// pose, typically against a previously loaded map.
type SetSlamPoseRequest struct {
	Pose Pose `json:"pose"`
}

// SetSlamPoseResponse reports whether the pose correction was accepted.
type SetSlamPoseResponse struct {
	Success bool `json:"success"`
}

// SaveMapRequest asks the system under test to persist its current map. The
// folder path is interpreted by the service, relative to its sensor-log
// root.
type SaveMapRequest struct {
	MapFolderPath string `json:"mapFolderPath"`
}

// SaveMapResponse reports whether the map was persisted.
type SaveMapResponse struct {
	Success bool `json:"success"`
}
