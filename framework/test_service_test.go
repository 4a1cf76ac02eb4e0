package framework

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServiceRequest is a request observed by newFakeService.
type fakeServiceRequest struct {
	Method string
	Path   string
	Body   string
}

// newFakeService stands in for a test service: it answers the status query,
// creates one session resource per POST, and records everything it sees.
func newFakeService(t *testing.T, statusBody string) (*httptest.Server, func() []fakeServiceRequest) {
	var lock sync.Mutex
	var requests []fakeServiceRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		lock.Lock()
		requests = append(requests, fakeServiceRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		lock.Unlock()

		switch {
		case r.Method == "GET" && r.URL.Path == "/":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(statusBody))
		case r.Method == "POST" && r.URL.Path == "/":
			w.Header().Set("Location", "/sessions/1")
			w.WriteHeader(201)
		default:
			w.WriteHeader(204)
		}
	}))
	t.Cleanup(server.Close)
	return server, func() []fakeServiceRequest {
		lock.Lock()
		defer lock.Unlock()
		return append([]fakeServiceRequest(nil), requests...)
	}
}

func offlineHarnessFor(serviceURL string) *TestHarness {
	return &TestHarness{
		serviceBaseURL: serviceURL,
		endpoints:      make(map[string]*MockEndpoint),
		logger:         NullLogger(),
	}
}

func TestQueryTestServiceInfoParsesStatusMetadata(t *testing.T) {
	server, _ := newFakeService(t, `{"name": "fake-slam-service", "capabilities": ["pose-stream"]}`)

	info, err := queryTestServiceInfo(server.URL, time.Second, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "fake-slam-service", info.Name)
	assert.Equal(t, []string{"pose-stream"}, info.Capabilities)
}

func TestQueryTestServiceInfoRejectsMalformedMetadata(t *testing.T) {
	server, _ := newFakeService(t, `not json`)

	_, err := queryTestServiceInfo(server.URL, time.Second, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed status response")
}

func TestQueryTestServiceInfoTimesOutWhenServiceNeverAnswers(t *testing.T) {
	// A listener that is immediately closed gives us a port with nothing on it.
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := queryTestServiceInfo(url, time.Millisecond*300, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestQueryTestServiceInfoFailsFastOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(500))
	defer server.Close()

	start := time.Now()
	_, err := queryTestServiceInfo(server.URL, time.Second*10, io.Discard)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second*5, "an error status should not be retried until the timeout")
}

func TestCreateEntityPostsParamsAndTracksLocation(t *testing.T) {
	server, requests := newFakeService(t, `{}`)
	h := offlineHarnessFor(server.URL)

	entity, err := h.CreateEntity(map[string]string{"sensorLog": "r2b_galileo"}, "replay session", nil)
	require.NoError(t, err)

	require.NoError(t, entity.SendCommand("pause"))
	require.NoError(t, entity.Close())

	all := requests()
	require.Len(t, all, 3)

	assert.Equal(t, "POST", all[0].Method)
	assert.Equal(t, "/", all[0].Path)
	assert.JSONEq(t, `{"sensorLog": "r2b_galileo"}`, all[0].Body)

	assert.Equal(t, "POST", all[1].Method)
	assert.Equal(t, "/sessions/1", all[1].Path)
	assert.JSONEq(t, `{"command": "pause"}`, all[1].Body)

	assert.Equal(t, "DELETE", all[2].Method)
	assert.Equal(t, "/sessions/1", all[2].Path)
}

func TestCreateEntityReportsServiceRejection(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithResponse(400, nil, []byte("no such sensor log")))
	defer server.Close()
	h := offlineHarnessFor(server.URL)

	_, err := h.CreateEntity(map[string]string{}, "replay session", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such sensor log")
}

func TestCreateEntityRequiresLocationHeader(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(201))
	defer server.Close()
	h := offlineHarnessFor(server.URL)

	_, err := h.CreateEntity(map[string]string{}, "replay session", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Location")
}

func TestEntityCloseReportsServiceError(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(500))
	defer server.Close()

	e := &TestServiceEntity{resourceURL: server.URL + "/sessions/1", logger: NullLogger()}
	require.Error(t, e.Close())
}

func TestStopServiceSendsDelete(t *testing.T) {
	server, requests := newFakeService(t, `{}`)
	h := offlineHarnessFor(server.URL)

	require.NoError(t, h.StopService())
	all := requests()
	require.Len(t, all, 1)
	assert.Equal(t, "DELETE", all[0].Method)
}
