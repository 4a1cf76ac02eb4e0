// Package transport defines the two narrow capabilities the harness needs
// from whatever messaging substrate connects it to the system under test: a
// Subscriber for named pose-estimate channels, and an RpcClient for
// synchronous control-plane calls.
//
// Test logic is written against these interfaces only. The HTTP realization
// in this package is the one used against real test services; package
// transporttest provides in-memory substitutes for unit tests.
package transport

import (
	"fmt"
	"time"
)

// Message is one message observed on a subscribed channel. The payload is
// not interpreted at this layer.
type Message struct {
	Channel    string
	Seq        int
	Data       []byte
	ReceivedAt time.Time
}

// Subscription is a live attachment to a named channel.
type Subscription interface {
	// Await returns the next message, blocking for up to the given timeout.
	// Its second return value is false if no message arrived in time or the
	// subscription was closed; a timeout here is a normal outcome, not an
	// error.
	Await(timeout time.Duration) (Message, bool)

	// Close releases the subscription. It is safe to call more than once,
	// and safe to call while another goroutine is blocked in Await.
	Close()
}

// Subscriber hands out subscriptions to named channels. Subscribing is local
// bookkeeping and cannot fail; whether any messages ever arrive is a
// property of the system under test, observed through Subscription.Await.
type Subscriber interface {
	Subscribe(channel string) Subscription
}

// RpcClient performs synchronous control-plane calls against named
// endpoints, with explicit bounds on how long to wait for an endpoint to
// exist and for a response to come back.
//
// Implementations must not retry: exactly one request is sent per Call. A
// repeated pose correction cannot be assumed idempotent.
type RpcClient interface {
	// WaitForEndpoint blocks until the named endpoint is available or the
	// timeout elapses, returning an *EndpointUnavailableError in the latter
	// case. No request is dispatched either way.
	WaitForEndpoint(endpoint string, timeout time.Duration) error

	// Call sends req to the endpoint and decodes the reply into resp. If no
	// reply arrives within the timeout it returns a *ResponseTimeoutError;
	// the request is not resent.
	Call(endpoint string, req interface{}, resp interface{}, timeout time.Duration) error
}

// EndpointUnavailableError means an endpoint never appeared within the
// availability bound. The call it was checked for was never dispatched.
type EndpointUnavailableError struct {
	Endpoint string
	Timeout  time.Duration
}

func (e *EndpointUnavailableError) Error() string {
	return fmt.Sprintf("endpoint %s did not become available within %s", e.Endpoint, e.Timeout)
}

// ResponseTimeoutError means a request was dispatched but no response
// arrived within the response bound.
type ResponseTimeoutError struct {
	Endpoint string
	Timeout  time.Duration
}

func (e *ResponseTimeoutError) Error() string {
	return fmt.Sprintf("endpoint %s did not respond within %s", e.Endpoint, e.Timeout)
}
