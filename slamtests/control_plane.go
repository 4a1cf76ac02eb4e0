package slamtests

import (
	"fmt"
	"math"
	"time"

	"github.com/navstack/slam-contract-tests/framework"
	"github.com/navstack/slam-contract-tests/servicedef"
	"github.com/navstack/slam-contract-tests/transport"
)

// ControlPlaneClient issues the synchronous control-plane call of one
// scenario run. Every call first waits for its endpoint to register, then
// dispatches exactly once: a repeated pose correction cannot be assumed
// safe, since the system under test could treat the duplicate as a second
// relocalization event. A client that has dispatched refuses further calls.
type ControlPlaneClient struct {
	rpc        transport.RpcClient
	logger     framework.Logger
	dispatched bool
}

func NewControlPlaneClient(rpc transport.RpcClient, logger framework.Logger) *ControlPlaneClient {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &ControlPlaneClient{rpc: rpc, logger: logger}
}

// SetSlamPose waits for the pose-correction endpoint and submits one
// correction. The response is returned verbatim; interpreting Success is the
// caller's job. availabilityTimeout bounds the wait for the endpoint to
// exist, responseTimeout the wait for the reply to the single request.
func (c *ControlPlaneClient) SetSlamPose(
	endpoint string,
	pose servicedef.Pose,
	availabilityTimeout, responseTimeout time.Duration,
) (servicedef.SetSlamPoseResponse, error) {
	if n := pose.Orientation.Norm(); math.Abs(n-1) > 0.01 {
		c.logger.Printf("orientation norm is %.4f; the service expects unit quaternions", n)
	}
	var resp servicedef.SetSlamPoseResponse
	err := c.call(endpoint, servicedef.SetSlamPoseRequest{Pose: pose}, &resp, availabilityTimeout, responseTimeout)
	return resp, err
}

// SaveMap waits for the save-map endpoint and asks the system under test to
// persist its current map to the given service-side folder.
func (c *ControlPlaneClient) SaveMap(
	endpoint string,
	mapFolderPath string,
	availabilityTimeout, responseTimeout time.Duration,
) (servicedef.SaveMapResponse, error) {
	var resp servicedef.SaveMapResponse
	err := c.call(endpoint, servicedef.SaveMapRequest{MapFolderPath: mapFolderPath}, &resp, availabilityTimeout, responseTimeout)
	return resp, err
}

func (c *ControlPlaneClient) call(
	endpoint string,
	req interface{},
	resp interface{},
	availabilityTimeout, responseTimeout time.Duration,
) error {
	if c.dispatched {
		return fmt.Errorf("control-plane client for this scenario has already dispatched a request")
	}
	if err := c.rpc.WaitForEndpoint(endpoint, availabilityTimeout); err != nil {
		return err
	}
	c.dispatched = true
	c.logger.Printf("dispatching request to %s", endpoint)
	return c.rpc.Call(endpoint, req, resp, responseTimeout)
}
