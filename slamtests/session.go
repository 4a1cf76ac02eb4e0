package slamtests

import (
	"github.com/navstack/slam-contract-tests/framework"
	"github.com/navstack/slam-contract-tests/servicedef"
)

// HTTPLauncher starts sessions by posting the session parameters to the test
// service, which launches the SLAM stack on its side and tears it down again
// when the session resource is deleted.
type HTTPLauncher struct {
	harness *framework.TestHarness
	logger  framework.Logger
}

func NewHTTPLauncher(harness *framework.TestHarness, logger framework.Logger) *HTTPLauncher {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &HTTPLauncher{harness: harness, logger: logger}
}

func (l *HTTPLauncher) Launch(params servicedef.StartSessionParams) (SystemHandle, error) {
	entity, err := l.harness.CreateEntity(params, "SLAM session "+params.Tag, l.logger)
	if err != nil {
		return nil, err
	}
	return entity, nil
}
