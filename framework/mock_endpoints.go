package framework

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const incomingRequestChannelSize = 100

// MockEndpoint is an endpoint on the harness's listener that the test
// service can send requests to.
type MockEndpoint struct {
	owner      *TestHarness
	id         string
	basePath   string
	handler    http.Handler
	newConns   chan IncomingRequestInfo
	cancels    map[int]context.CancelFunc
	nextCancel int
	logger     Logger
	lock       sync.Mutex
	closing    sync.Once
}

// IncomingRequestInfo describes one HTTP request sent by the test service to
// a mock endpoint. Path is the part of the request path below the endpoint's
// base URL. The Context is canceled if the endpoint is closed while the
// request is still being handled.
type IncomingRequestInfo struct {
	Headers http.Header
	Method  string
	Path    string
	Body    []byte
	Context context.Context
}

// NewMockEndpoint adds an endpoint that can receive requests.
//
// The handler is called for all incoming requests to the endpoint's base URL
// or any subpath of it; the request URL is rewritten first so the handler
// sees only the subpath. Each request is also delivered to AwaitConnection,
// whether or not the handler does anything with it.
func (h *TestHarness) NewMockEndpoint(
	handler http.Handler,
	logger Logger,
) *MockEndpoint {
	if logger == nil {
		logger = h.logger
	}
	e := &MockEndpoint{
		owner:    h,
		handler:  handler,
		newConns: make(chan IncomingRequestInfo, incomingRequestChannelSize),
		cancels:  make(map[int]context.CancelFunc),
		logger:   logger,
	}
	h.lock.Lock()
	h.lastEndpointID++
	e.id = strconv.Itoa(h.lastEndpointID)
	e.basePath = endpointPathPrefix + e.id
	h.endpoints[e.id] = e
	h.lock.Unlock()

	return e
}

// BaseURL returns the endpoint's externally visible URL, suitable for
// passing to the test service.
func (e *MockEndpoint) BaseURL() string {
	return e.owner.externalBaseURL + e.basePath
}

// AwaitConnection waits for an incoming request to the endpoint.
func (e *MockEndpoint) AwaitConnection(timeout time.Duration) (IncomingRequestInfo, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case cxn, ok := <-e.newConns:
		if !ok {
			return IncomingRequestInfo{}, fmt.Errorf("endpoint %s was closed while waiting for a request", e.basePath)
		}
		return cxn, nil
	case <-deadline.C:
		return IncomingRequestInfo{}, fmt.Errorf("timed out waiting for an incoming request to %s", e.basePath)
	}
}

// Close unregisters the endpoint. Any subsequent requests to it will receive
// 404 errors. It also cancels the Context of every request still in flight,
// so a handler blocked on one is released promptly.
func (e *MockEndpoint) Close() {
	e.closing.Do(func() {
		e.owner.lock.Lock()
		delete(e.owner.endpoints, e.id)
		e.owner.lock.Unlock()

		e.lock.Lock()
		cancellers := e.cancels
		e.cancels = nil
		close(e.newConns)
		e.lock.Unlock()

		for _, cancel := range cancellers {
			cancel()
		}
	})
}

// deliver makes the request visible to AwaitConnection. The push is
// non-blocking; if nothing has been consuming connections the oldest unread
// ones are simply left in the buffer and the newest is dropped.
func (e *MockEndpoint) deliver(incoming IncomingRequestInfo) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.cancels == nil { // closed; newConns may already be closed too
		return
	}
	select {
	case e.newConns <- incoming:
	default:
		e.logger.Printf("Incoming request channel was full for %s", e.basePath)
	}
}

func (e *MockEndpoint) trackRequest(parent context.Context) (context.Context, int) {
	ctx, cancel := context.WithCancel(parent)
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.cancels == nil { // endpoint already closed
		cancel()
		return ctx, -1
	}
	e.nextCancel++
	id := e.nextCancel
	e.cancels[id] = cancel
	return ctx, id
}

func (e *MockEndpoint) forgetRequest(id int) {
	e.lock.Lock()
	cancel := e.cancels[id]
	delete(e.cancels, id)
	e.lock.Unlock()
	if cancel != nil {
		cancel()
	}
}
