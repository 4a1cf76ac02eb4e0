package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navstack/slam-contract-tests/framework"
)

const odomChannel = "/testns/visual_slam/tracking/odometry"

// newOfflineSubscriber builds a CallbackSubscriber with no live harness
// endpoint behind it; these tests drive ServeHTTP directly.
func newOfflineSubscriber() *CallbackSubscriber {
	return &CallbackSubscriber{
		subs:   make(map[string][]*callbackSubscription),
		logger: framework.NullLogger(),
	}
}

func deliver(s *CallbackSubscriber, channel string, seq int, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", channel+"/"+strconv.Itoa(seq), strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func requireMessage(t *testing.T, sub Subscription, timeout time.Duration) Message {
	msg, ok := sub.Await(timeout)
	require.True(t, ok, "expected a message but none arrived")
	return msg
}

func TestCallbackSubscriberRoutesMessagesToChannelSubscription(t *testing.T) {
	s := newOfflineSubscriber()
	sub := s.Subscribe(odomChannel)
	defer sub.Close()

	w := deliver(s, odomChannel, 1, `{"pose": 1}`)
	assert.Equal(t, 202, w.Code)

	msg := requireMessage(t, sub, time.Second)
	assert.Equal(t, odomChannel, msg.Channel)
	assert.Equal(t, 1, msg.Seq)
	assert.Equal(t, `{"pose": 1}`, string(msg.Data))
	assert.False(t, msg.ReceivedAt.IsZero())
}

func TestCallbackSubscriberReordersOutOfOrderDeliveries(t *testing.T) {
	s := newOfflineSubscriber()
	sub := s.Subscribe(odomChannel)
	defer sub.Close()

	deliver(s, odomChannel, 2, "second")
	deliver(s, odomChannel, 3, "third")
	deliver(s, odomChannel, 1, "first")

	assert.Equal(t, 1, requireMessage(t, sub, time.Second).Seq)
	assert.Equal(t, 2, requireMessage(t, sub, time.Second).Seq)
	assert.Equal(t, 3, requireMessage(t, sub, time.Second).Seq)
}

func TestCallbackSubscriberKeepsChannelsSeparate(t *testing.T) {
	s := newOfflineSubscriber()
	subA := s.Subscribe("/nsA/visual_slam/tracking/odometry")
	defer subA.Close()
	subB := s.Subscribe("/nsB/visual_slam/tracking/odometry")
	defer subB.Close()

	deliver(s, "/nsB/visual_slam/tracking/odometry", 1, "for B")

	msg := requireMessage(t, subB, time.Second)
	assert.Equal(t, "for B", string(msg.Data))

	_, ok := subA.Await(time.Millisecond * 50)
	assert.False(t, ok, "subscription A should not see channel B's message")
}

func TestCallbackSubscriberSupportsMultipleSubscriptionsPerChannel(t *testing.T) {
	s := newOfflineSubscriber()
	sub1 := s.Subscribe(odomChannel)
	defer sub1.Close()
	sub2 := s.Subscribe(odomChannel)
	defer sub2.Close()

	deliver(s, odomChannel, 1, "shared")

	assert.Equal(t, "shared", string(requireMessage(t, sub1, time.Second).Data))
	assert.Equal(t, "shared", string(requireMessage(t, sub2, time.Second).Data))
}

func TestCallbackSubscriberDropsDeliveryWithNoSubscription(t *testing.T) {
	s := newOfflineSubscriber()

	w := deliver(s, odomChannel, 1, "too early")
	assert.Equal(t, 202, w.Code, "pre-subscription deliveries are accepted and dropped")

	sub := s.Subscribe(odomChannel)
	defer sub.Close()
	_, ok := sub.Await(time.Millisecond * 50)
	assert.False(t, ok, "messages delivered before subscribing are not replayed")
}

func TestCallbackSubscriberRejectsUnparseablePath(t *testing.T) {
	s := newOfflineSubscriber()

	req := httptest.NewRequest("POST", "/only-one-segment", strings.NewReader("x"))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, 400, w.Code)

	w = deliver(s, odomChannel, 0, "x") // seq 0 parses; non-numeric does not
	assert.Equal(t, 202, w.Code)

	req = httptest.NewRequest("POST", odomChannel+"/notanumber", strings.NewReader("x"))
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, 400, w.Code)
}

func TestCallbackSubscriberRejectsNonPost(t *testing.T) {
	s := newOfflineSubscriber()
	req := httptest.NewRequest("GET", odomChannel+"/1", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, 405, w.Code)
}

func TestClosedSubscriptionStopsReceiving(t *testing.T) {
	s := newOfflineSubscriber()
	sub := s.Subscribe(odomChannel)
	sub.Close()
	sub.Close() // safe to call twice

	deliver(s, odomChannel, 1, "late")
	_, ok := sub.Await(time.Millisecond * 50)
	assert.False(t, ok)
}

func TestSubscriptionAwaitTimesOutPromptly(t *testing.T) {
	s := newOfflineSubscriber()
	sub := s.Subscribe(odomChannel)
	defer sub.Close()

	start := time.Now()
	_, ok := sub.Await(time.Millisecond * 100)
	elapsed := time.Since(start)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, time.Millisecond*100)
	assert.Less(t, elapsed, time.Second)
}

type rpcFixture struct {
	server    *httptest.Server
	available map[string]bool
	responses map[string]string
	delay     time.Duration
	lock      sync.Mutex
	posts     []recordedPost
}

type recordedPost struct {
	Path string
	Body string
}

// newRPCFixture stands in for the control-plane side of a test service:
// GET on a registered endpoint answers 200, POST answers with canned JSON.
func newRPCFixture(t *testing.T) *rpcFixture {
	f := &rpcFixture{
		available: make(map[string]bool),
		responses: make(map[string]string),
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lock.Lock()
		available := f.available[r.URL.Path]
		response := f.responses[r.URL.Path]
		delay := f.delay
		f.lock.Unlock()

		if !available {
			w.WriteHeader(404)
			return
		}
		switch r.Method {
		case "GET":
			w.WriteHeader(200)
		case "POST":
			body, _ := io.ReadAll(r.Body)
			f.lock.Lock()
			f.posts = append(f.posts, recordedPost{Path: r.URL.Path, Body: string(body)})
			f.lock.Unlock()
			if delay > 0 {
				time.Sleep(delay)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(response))
		default:
			w.WriteHeader(405)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *rpcFixture) recordedPosts() []recordedPost {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]recordedPost(nil), f.posts...)
}

func (f *rpcFixture) register(endpoint, response string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.available[endpoint] = true
	f.responses[endpoint] = response
}

func (f *rpcFixture) setDelay(d time.Duration) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.delay = d
}

type testCallRequest struct {
	Value string `json:"value"`
}

type testCallResponse struct {
	Success bool `json:"success"`
}

func TestRpcClientCallsAvailableEndpoint(t *testing.T) {
	f := newRPCFixture(t)
	f.register("/ns/visual_slam/set_slam_pose", `{"success": true}`)
	c := NewServiceRpcClient(f.server.URL, framework.NullLogger())

	require.NoError(t, c.WaitForEndpoint("/ns/visual_slam/set_slam_pose", time.Second))

	var resp testCallResponse
	err := c.Call("/ns/visual_slam/set_slam_pose", testCallRequest{Value: "hello"}, &resp, time.Second)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	posts := f.recordedPosts()
	require.Len(t, posts, 1, "exactly one request must be dispatched")
	assert.Equal(t, "/ns/visual_slam/set_slam_pose", posts[0].Path)
	var sent testCallRequest
	require.NoError(t, json.Unmarshal([]byte(posts[0].Body), &sent))
	assert.Equal(t, "hello", sent.Value)
}

func TestRpcClientWaitForEndpointSeesLateRegistration(t *testing.T) {
	f := newRPCFixture(t)
	c := NewServiceRpcClient(f.server.URL, framework.NullLogger())

	go func() {
		time.Sleep(time.Millisecond * 250)
		f.register("/ns/visual_slam/set_slam_pose", `{"success": true}`)
	}()

	require.NoError(t, c.WaitForEndpoint("/ns/visual_slam/set_slam_pose", time.Second*5))
}

func TestRpcClientWaitForEndpointTimesOut(t *testing.T) {
	f := newRPCFixture(t)
	c := NewServiceRpcClient(f.server.URL, framework.NullLogger())

	err := c.WaitForEndpoint("/ns/visual_slam/set_slam_pose", time.Millisecond*300)
	require.Error(t, err)
	var unavailable *EndpointUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "/ns/visual_slam/set_slam_pose", unavailable.Endpoint)

	assert.Empty(t, f.recordedPosts(), "no request may be dispatched while waiting for availability")
}

func TestRpcClientCallTimeoutIsReportedAsResponseTimeout(t *testing.T) {
	f := newRPCFixture(t)
	f.register("/ns/visual_slam/set_slam_pose", `{"success": true}`)
	f.setDelay(time.Second * 2)
	c := NewServiceRpcClient(f.server.URL, framework.NullLogger())

	var resp testCallResponse
	err := c.Call("/ns/visual_slam/set_slam_pose", testCallRequest{}, &resp, time.Millisecond*200)
	require.Error(t, err)
	var timeout *ResponseTimeoutError
	require.ErrorAs(t, err, &timeout)

	// The request went out before the bound elapsed; it is not retried.
	time.Sleep(time.Millisecond * 100)
	assert.Len(t, f.recordedPosts(), 1)
}

func TestRpcClientCallReportsErrorStatus(t *testing.T) {
	f := newRPCFixture(t)
	c := NewServiceRpcClient(f.server.URL, framework.NullLogger())

	var resp testCallResponse
	err := c.Call("/ns/visual_slam/set_slam_pose", testCallRequest{}, &resp, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	var timeout *ResponseTimeoutError
	assert.False(t, errors.As(err, &timeout), "an HTTP error is not a response timeout")
}
