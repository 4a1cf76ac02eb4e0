// Package transporttest provides in-memory implementations of the transport
// capabilities for unit tests: a Bus whose channels tests publish to
// directly, and a scripted RPC client that records every call it receives.
package transporttest

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/navstack/slam-contract-tests/transport"
)

const busChannelSize = 64

// Bus is an in-memory Subscriber. Tests deliver messages with Publish;
// sequence numbers are assigned per channel in publish order, so messages
// always arrive in order. Like the HTTP transport, a Bus does not replay:
// a message published before a channel has subscribers is dropped.
type Bus struct {
	subs     map[string][]*busSubscription
	nextSeq  map[string]int
	openSubs int
	lock     sync.Mutex
}

func NewBus() *Bus {
	return &Bus{
		subs:    make(map[string][]*busSubscription),
		nextSeq: make(map[string]int),
	}
}

func (b *Bus) Subscribe(channel string) transport.Subscription {
	sub := &busSubscription{
		owner:   b,
		channel: channel,
		ch:      make(chan transport.Message, busChannelSize),
	}
	b.lock.Lock()
	b.subs[channel] = append(b.subs[channel], sub)
	b.openSubs++
	b.lock.Unlock()
	return sub
}

// Publish delivers one message to every current subscription on the channel
// and returns the sequence number it was assigned.
func (b *Bus) Publish(channel string, data []byte) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.nextSeq[channel]++
	seq := b.nextSeq[channel]
	msg := transport.Message{Channel: channel, Seq: seq, Data: data, ReceivedAt: time.Now()}
	for _, sub := range b.subs[channel] {
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return seq
}

// OpenSubscriptions reports how many subscriptions have been created and not
// yet closed, so tests can assert that every wait released its subscription.
func (b *Bus) OpenSubscriptions() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.openSubs
}

type busSubscription struct {
	owner     *Bus
	channel   string
	ch        chan transport.Message
	closeOnce sync.Once
}

func (s *busSubscription) Await(timeout time.Duration) (transport.Message, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return transport.Message{}, false
		}
		return msg, true
	case <-deadline.C:
		return transport.Message{}, false
	}
}

func (s *busSubscription) Close() {
	s.closeOnce.Do(func() {
		b := s.owner
		b.lock.Lock()
		forChannel := b.subs[s.channel]
		for i, candidate := range forChannel {
			if candidate == s {
				b.subs[s.channel] = append(forChannel[:i], forChannel[i+1:]...)
				break
			}
		}
		b.openSubs--
		close(s.ch)
		b.lock.Unlock()
	})
}

// RecordedCall is one dispatched request seen by a ScriptedRpcClient.
type RecordedCall struct {
	Endpoint string
	Request  interface{}
}

// ScriptedRpcClient implements transport.RpcClient with canned behavior, and
// records every dispatched call so tests can assert at-most-once semantics.
// The zero value has no available endpoints; configure it with the helper
// methods before use.
type ScriptedRpcClient struct {
	available map[string]bool
	responses map[string]interface{}
	callErr   error
	calls     []RecordedCall
	waits     []string
	lock      sync.Mutex
}

func NewScriptedRpcClient() *ScriptedRpcClient {
	return &ScriptedRpcClient{
		available: make(map[string]bool),
		responses: make(map[string]interface{}),
	}
}

// RespondTo makes the endpoint available and scripts its response, which is
// copied into the caller's response struct via a JSON round trip.
func (c *ScriptedRpcClient) RespondTo(endpoint string, response interface{}) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.available[endpoint] = true
	c.responses[endpoint] = response
}

// FailCallsWith makes every dispatched call return err instead of a scripted
// response; the call is still recorded as dispatched.
func (c *ScriptedRpcClient) FailCallsWith(err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.callErr = err
}

// Calls returns every dispatched call in order.
func (c *ScriptedRpcClient) Calls() []RecordedCall {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]RecordedCall(nil), c.calls...)
}

// Waits returns the endpoint names passed to WaitForEndpoint, in order.
func (c *ScriptedRpcClient) Waits() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]string(nil), c.waits...)
}

func (c *ScriptedRpcClient) WaitForEndpoint(endpoint string, timeout time.Duration) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.waits = append(c.waits, endpoint)
	if !c.available[endpoint] {
		return &transport.EndpointUnavailableError{Endpoint: endpoint, Timeout: timeout}
	}
	return nil
}

func (c *ScriptedRpcClient) Call(endpoint string, req interface{}, resp interface{}, timeout time.Duration) error {
	c.lock.Lock()
	c.calls = append(c.calls, RecordedCall{Endpoint: endpoint, Request: req})
	callErr := c.callErr
	scripted, haveResponse := c.responses[endpoint]
	c.lock.Unlock()

	if callErr != nil {
		return callErr
	}
	if !haveResponse {
		return fmt.Errorf("no scripted response for endpoint %s", endpoint)
	}
	data, err := json.Marshal(scripted)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, resp)
}
