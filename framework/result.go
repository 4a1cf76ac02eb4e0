package framework

import "strings"

// Results accumulates the outcome of an entire test run. Failures is the
// subset of Tests that recorded at least one error.
type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// TestResult is the outcome of a single test or subtest.
type TestResult struct {
	TestID TestID
	Errors []error
}

// TestID identifies a test as a path of names, from the outermost grouping
// down to the test itself.
type TestID struct {
	Path []string
}

// Plus returns the child TestID formed by appending one more name.
func (t TestID) Plus(name string) TestID {
	path := make([]string, 0, len(t.Path)+1)
	path = append(path, t.Path...)
	return TestID{Path: append(path, name)}
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}
