package slamtests

import (
	"github.com/navstack/slam-contract-tests/framework"
)

// RunTestSuite runs all of the SLAM regression tests against the test service
// represented by harness. Sensor logs named by fixtures are resolved under
// bagRoot. If scenarioDir is non-empty, any scenario files found there are
// run as well, each as its own subtest.
func RunTestSuite(
	harness *framework.TestHarness,
	bagRoot string,
	scenarioDir string,
	filter framework.Filter,
	testLogger framework.TestLogger,
) framework.Results {
	env := &suiteEnv{harness: harness, bagRoot: bagRoot, scenarioDir: scenarioDir}
	return framework.Run(filter, testLogger, func(c *framework.Context) {
		t := newTestScope(c, env)
		defer t.close()

		t.Run("relocalization", DoRelocalizationTests)
		t.Run("tracking", DoTrackingTests)
		t.Run("map persistence", DoMapPersistenceTests)
	})
}
