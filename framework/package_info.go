// Package framework contains the parts of the test harness that are not
// specific to SLAM testing: communicating with a test service, hosting mock
// HTTP endpoints, and keeping track of test results.
//
// The general model is:
//
// 1. The harness talks to a test service, which exposes a root resource for
// querying its status and capabilities (GET), starting whatever kind of
// entity the service manages (POST), or shutting the service down (DELETE).
// Each created entity is an addressable resource of its own, which can
// receive commands (POST) and be torn down (DELETE).
//
// 2. The harness hosts an HTTP listener on which it can expose any number of
// mock endpoints. The test service pushes data back to the harness by making
// requests to those endpoints.
//
// 3. There is a general notion of a test context, similar to Go's testing.T,
// which lets pieces of test logic be identified hierarchically and
// accumulate pass/fail results along with captured debug output.
//
// Code that knows what is actually being tested lives elsewhere; it supplies
// the parameters sent to the test service, the handlers attached to mock
// endpoints, and a domain-specific API on top of the test context.
package framework
