package framework

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const endpointPathPrefix = "/endpoints/"
const httpListenerTimeout = time.Second * 10

// TestHarness manages the two faces of a test run: the client side that
// talks to the test service, and the HTTP listener that receives whatever
// the service pushes back (pose-estimate callbacks, or anything else a mock
// endpoint is set up for).
type TestHarness struct {
	serviceBaseURL  string
	externalBaseURL string
	serviceInfo     TestServiceInfo
	endpoints       map[string]*MockEndpoint
	lastEndpointID  int
	logger          Logger
	lock            sync.Mutex
}

// NewTestHarness verifies that the test service is responding by polling its
// status resource, then starts an HTTP listener on the specified port to
// receive callback requests. The external hostname is the name under which
// the test service can reach that listener, which may differ from localhost
// when the service runs in a container.
func NewTestHarness(
	serviceBaseURL string,
	externalHostname string,
	port int,
	statusQueryTimeout time.Duration,
	debugLogger Logger,
	startupOutput io.Writer,
) (*TestHarness, error) {
	if debugLogger == nil {
		debugLogger = NullLogger()
	}

	h := &TestHarness{
		serviceBaseURL:  strings.TrimSuffix(serviceBaseURL, "/"),
		externalBaseURL: fmt.Sprintf("http://%s:%d", externalHostname, port),
		endpoints:       make(map[string]*MockEndpoint),
		logger:          debugLogger,
	}

	serviceInfo, err := queryTestServiceInfo(h.serviceBaseURL, statusQueryTimeout, startupOutput)
	if err != nil {
		return nil, err
	}
	h.serviceInfo = serviceInfo

	if err = startServer(port, http.HandlerFunc(h.serveHTTP)); err != nil {
		return nil, err
	}

	return h, nil
}

// ServiceBaseURL returns the base URL of the test service, for components
// that address resources under it directly.
func (h *TestHarness) ServiceBaseURL() string {
	return h.serviceBaseURL
}

func (h *TestHarness) TestServiceInfo() TestServiceInfo {
	return h.serviceInfo
}

func (h *TestHarness) TestServiceHasCapability(desired string) bool {
	for _, capability := range h.serviceInfo.Capabilities {
		if capability == desired {
			return true
		}
	}
	return false
}

func (h *TestHarness) serveHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method == "HEAD" {
		w.WriteHeader(200) // we use this to test whether our own listener is active yet
		return
	}

	if !strings.HasPrefix(req.URL.Path, endpointPathPrefix) {
		h.logger.Printf("Received request for unrecognized URL path %s", req.URL.Path)
		w.WriteHeader(404)
		return
	}
	path := strings.TrimPrefix(req.URL.Path, endpointPathPrefix)
	var endpointID string
	slashPos := strings.Index(path, "/")
	if slashPos >= 0 {
		endpointID = path[0:slashPos]
		path = path[slashPos:]
	} else {
		endpointID = path
		path = ""
	}

	h.lock.Lock()
	e := h.endpoints[endpointID]
	h.lock.Unlock()
	if e == nil {
		h.logger.Printf("Received request for unrecognized endpoint %s", req.URL.Path)
		w.WriteHeader(404)
		return
	}

	var body []byte
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			h.logger.Printf("Unexpected error trying to read request body: %s", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body = data
	}

	ctx, cancelID := e.trackRequest(req.Context())
	if cancelID < 0 { // endpoint was closed while this request was in flight
		w.WriteHeader(404)
		return
	}
	defer e.forgetRequest(cancelID)

	e.deliver(IncomingRequestInfo{
		Headers: req.Header,
		Method:  req.Method,
		Path:    path,
		Body:    body,
		Context: ctx,
	})

	transformedReq := req.WithContext(ctx)
	url := *req.URL
	url.Path = path
	transformedReq.URL = &url
	if body != nil {
		transformedReq.Body = io.NopCloser(bytes.NewBuffer(body))
	}

	e.handler.ServeHTTP(w, transformedReq)
}

func startServer(port int, handler http.Handler) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil {
			panic(err)
		}
	}()

	// Wait till the server is definitely listening for requests before we run any tests
	deadline := time.NewTimer(httpListenerTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Millisecond * 10)
	defer ticker.Stop()
	for {
		select {
		case <-deadline.C:
			return fmt.Errorf("could not detect own listener at %s", server.Addr)
		case <-ticker.C:
			resp, err := http.DefaultClient.Head(fmt.Sprintf("http://localhost:%d", port))
			if err == nil && resp.StatusCode == 200 {
				return nil
			}
		}
	}
}
