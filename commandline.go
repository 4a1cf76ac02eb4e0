package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/navstack/slam-contract-tests/framework"

	"github.com/alessio/shellescape"
	"github.com/caarlos0/env/v11"
)

const defaultPort = 8111

// envParams are defaults that can come from the environment, so CI
// configurations do not have to repeat them on every invocation. Flags win
// over these when both are given.
type envParams struct {
	ServiceURL  string `env:"SLAM_TEST_SERVICE_URL"`
	Host        string `env:"SLAM_TEST_HARNESS_HOST" envDefault:"localhost"`
	Port        int    `env:"SLAM_TEST_HARNESS_PORT" envDefault:"8111"`
	BagRoot     string `env:"SLAM_TEST_BAG_ROOT"     envDefault:"test_cases/rosbags"`
	ScenarioDir string `env:"SLAM_TEST_SCENARIO_DIR"`
}

type commandParams struct {
	serviceURL       string
	port             int
	host             string
	bagRoot          string
	scenarioDir      string
	filters          framework.RegexFilters
	stopServiceAtEnd bool
	debug            bool
	debugAll         bool
}

func (c *commandParams) Read(args []string) bool {
	var defaults envParams
	if err := env.Parse(&defaults); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}

	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.serviceURL, "url", defaults.ServiceURL, "test service URL")
	fs.StringVar(&c.host, "host", defaults.Host, "external hostname of the test harness")
	fs.IntVar(&c.port, "port", defaults.Port, "port that the test harness will listen on")
	fs.StringVar(&c.bagRoot, "bags", defaults.BagRoot, "directory containing the recorded sensor logs")
	fs.StringVar(&c.scenarioDir, "scenarios", defaults.ScenarioDir, "directory of extra scenario files to run")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.stopServiceAtEnd, "stop-service-at-end", false, "tell test service to exit after the test run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if c.serviceURL == "" {
		fmt.Fprintln(os.Stderr, "-url (or SLAM_TEST_SERVICE_URL) is required")
		fs.Usage()
		return false
	}
	return true
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

// rerunCommand builds a command line that runs exactly the tests that failed,
// keeping the parameters of this run.
func rerunCommand(executable string, params commandParams, failures []framework.TestResult) string {
	var b commandBuilder
	b.add(executable, "-url", params.serviceURL)
	if params.host != "localhost" {
		b.add("-host", params.host)
	}
	if params.port != defaultPort {
		b.add("-port", fmt.Sprintf("%d", params.port))
	}
	b.add("-bags", params.bagRoot)
	if params.scenarioDir != "" {
		b.add("-scenarios", params.scenarioDir)
	}
	if params.debug || params.debugAll {
		b.add("-debug")
	}
	for _, f := range failures {
		b.add("-run", "^"+regexp.QuoteMeta(f.TestID.String())+"$")
	}
	return b.String()
}
