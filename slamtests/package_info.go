// Package slamtests contains the SLAM localization contract tests
// themselves and their supporting API.
//
// Each scenario brings a system under test online by asking the test service
// to replay a recorded sensor log, waits for proof that tracking has begun,
// and then exercises one control-plane operation against it. Test harness
// infrastructure that is not specific to the SLAM domain, such as talking to
// the test service and receiving requests on mock endpoints, is in the
// lower-level framework package; the messaging capabilities the scenarios
// are written against are in the transport package.
package slamtests
