package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/navstack/slam-contract-tests/framework"
)

const subscriptionChannelSize = 100
const endpointPollInterval = time.Millisecond * 100

// CallbackSubscriber realizes the Subscriber capability over the harness's
// own HTTP listener. It registers one mock endpoint; the test service POSTs
// every message on channel ch to <BaseURL()><ch>/<seq>, and the subscriber
// routes it to each subscription attached to that channel.
//
// Channel names are namespaced paths rooted with "/", in the style of
// /ns/visual_slam/tracking/odometry, so a channel occupies several path
// segments and the final segment is always the sequence number.
type CallbackSubscriber struct {
	endpoint *framework.MockEndpoint
	logger   framework.Logger
	subs     map[string][]*callbackSubscription
	lock     sync.Mutex
}

func NewCallbackSubscriber(h *framework.TestHarness, logger framework.Logger) *CallbackSubscriber {
	if logger == nil {
		logger = framework.NullLogger()
	}
	s := &CallbackSubscriber{
		subs:   make(map[string][]*callbackSubscription),
		logger: framework.LoggerWithPrefix(logger, "[pose stream] "),
	}
	s.endpoint = h.NewMockEndpoint(s, logger)
	return s
}

// BaseURL is the URL the test service should POST channel messages to.
func (s *CallbackSubscriber) BaseURL() string {
	return s.endpoint.BaseURL()
}

// Close releases the mock endpoint and every open subscription.
func (s *CallbackSubscriber) Close() {
	s.endpoint.Close()
	s.lock.Lock()
	subs := s.subs
	s.subs = nil
	s.lock.Unlock()
	for _, forChannel := range subs {
		for _, sub := range forChannel {
			sub.buffer.Close()
		}
	}
}

func (s *CallbackSubscriber) Subscribe(channel string) Subscription {
	sub := &callbackSubscription{
		owner:   s,
		channel: channel,
		buffer:  NewSequenceBuffer(subscriptionChannelSize),
	}
	s.lock.Lock()
	if s.subs != nil {
		s.subs[channel] = append(s.subs[channel], sub)
	}
	s.lock.Unlock()
	return sub
}

// ServeHTTP handles one delivered message from the test service.
func (s *CallbackSubscriber) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	channel, seq, err := parseChannelPath(req.URL.Path)
	if err != nil {
		s.logger.Printf("rejecting delivery with unparseable path %q: %s", req.URL.Path, err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.lock.Lock()
	forChannel := append([]*callbackSubscription(nil), s.subs[channel]...)
	s.lock.Unlock()
	if len(forChannel) == 0 {
		// Deliveries can begin before anything has subscribed; they are not
		// buffered, because readiness only cares about messages from now on.
		s.logger.Printf("dropping message %d on %s: no subscription", seq, channel)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	msg := Message{Channel: channel, Seq: seq, Data: body, ReceivedAt: time.Now()}
	for _, sub := range forChannel {
		sub.buffer.Accept(msg)
	}
	w.WriteHeader(http.StatusAccepted)
}

// parseChannelPath splits "<channel>/<seq>", where the channel is itself a
// rooted path like /ns/visual_slam/tracking/odometry.
func parseChannelPath(path string) (channel string, seq int, err error) {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "", 0, fmt.Errorf("path %q has no sequence segment", path)
	}
	seq, err = strconv.Atoi(path[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("bad sequence segment in %q: %w", path, err)
	}
	return path[:idx], seq, nil
}

type callbackSubscription struct {
	owner     *CallbackSubscriber
	channel   string
	buffer    *SequenceBuffer
	closeOnce sync.Once
}

func (c *callbackSubscription) Await(timeout time.Duration) (Message, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case msg, ok := <-c.buffer.C:
		if !ok {
			return Message{}, false
		}
		return msg, true
	case <-deadline.C:
		return Message{}, false
	}
}

func (c *callbackSubscription) Close() {
	c.closeOnce.Do(func() {
		c.owner.forget(c)
		c.buffer.Close()
	})
}

func (s *CallbackSubscriber) forget(sub *callbackSubscription) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.subs == nil {
		return
	}
	forChannel := s.subs[sub.channel]
	for i, candidate := range forChannel {
		if candidate == sub {
			s.subs[sub.channel] = append(forChannel[:i], forChannel[i+1:]...)
			break
		}
	}
	if len(s.subs[sub.channel]) == 0 {
		delete(s.subs, sub.channel)
	}
}

// ServiceRpcClient realizes the RpcClient capability against a test service
// that exposes each control-plane endpoint as a resource under its base URL:
// GET answers 200 once the endpoint is registered, POST performs the call.
type ServiceRpcClient struct {
	baseURL    string
	httpClient *http.Client
	logger     framework.Logger
}

func NewServiceRpcClient(serviceBaseURL string, logger framework.Logger) *ServiceRpcClient {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &ServiceRpcClient{
		baseURL:    strings.TrimSuffix(serviceBaseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     framework.LoggerWithPrefix(logger, "[control plane] "),
	}
}

func (c *ServiceRpcClient) endpointURL(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// WaitForEndpoint polls the endpoint resource until it answers 200 or the
// timeout elapses. The first probe is sent immediately, so an endpoint that
// already exists costs one round trip.
func (c *ServiceRpcClient) WaitForEndpoint(endpoint string, timeout time.Duration) error {
	probeURL := c.endpointURL(endpoint)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(endpointPollInterval)
	defer ticker.Stop()
	for {
		resp, err := c.httpClient.Get(probeURL)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == 200 {
				c.logger.Printf("endpoint %s is available", endpoint)
				return nil
			}
		}
		select {
		case <-deadline.C:
			return &EndpointUnavailableError{Endpoint: endpoint, Timeout: timeout}
		case <-ticker.C:
		}
	}
}

// Call sends one POST to the endpoint and decodes the JSON reply. The
// request is never resent; if the response bound elapses the outcome is a
// *ResponseTimeoutError and whatever the service eventually does with the
// request is its own business.
func (c *ServiceRpcClient) Call(endpoint string, req interface{}, resp interface{}, timeout time.Duration) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request for %s: %w", endpoint, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpointURL(endpoint), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request for %s: %w", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Printf("calling %s: %s", endpoint, string(data))
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ResponseTimeoutError{Endpoint: endpoint, Timeout: timeout}
		}
		return fmt.Errorf("calling %s: %w", endpoint, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ResponseTimeoutError{Endpoint: endpoint, Timeout: timeout}
		}
		return fmt.Errorf("reading response from %s: %w", endpoint, err)
	}
	if httpResp.StatusCode != 200 {
		return fmt.Errorf("endpoint %s returned HTTP %d: %s", endpoint, httpResp.StatusCode, strings.TrimSpace(string(body)))
	}
	c.logger.Printf("response from %s: %s", endpoint, string(body))
	if err := json.Unmarshal(body, resp); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}
	return nil
}
