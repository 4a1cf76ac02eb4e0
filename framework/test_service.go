package framework

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestServiceInfo is what the test service reports from its status resource:
// an identifying name, and the optional capabilities it supports. Tests that
// need a capability the service did not advertise are skipped rather than
// failed.
type TestServiceInfo struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// TestServiceEntity represents something we have asked the test service to
// create and keep running, such as a replay session of the system under
// test. The entity remains active inside the service until Close is called.
type TestServiceEntity struct {
	resourceURL string
	logger      Logger
}

func queryTestServiceInfo(url string, timeout time.Duration, output io.Writer) (TestServiceInfo, error) {
	fmt.Fprintf(output, "Connecting to test service at %s", url)

	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprintf(output, ".")
		resp, err := http.DefaultClient.Get(url)
		if err == nil {
			fmt.Fprintln(output)
			if resp.StatusCode != 200 {
				return TestServiceInfo{}, fmt.Errorf("test service returned status code %d", resp.StatusCode)
			}
			if resp.Body == nil {
				fmt.Fprintf(output, "Status query successful, but service provided no metadata\n")
				return TestServiceInfo{}, nil
			}
			respData, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return TestServiceInfo{}, err
			}
			fmt.Fprintf(output, "Status query returned metadata: %s\n", string(respData))
			var info TestServiceInfo
			if err := json.Unmarshal(respData, &info); err != nil {
				return TestServiceInfo{}, fmt.Errorf("malformed status response from test service: %s", string(respData))
			}
			return info, nil
		}
		if !time.Now().Before(deadline) {
			return TestServiceInfo{}, fmt.Errorf("timed out, result of last query was: %w", err)
		}
		time.Sleep(time.Millisecond * 100)
	}
}

// StopService tells the test service that it should exit.
func (h *TestHarness) StopService() error {
	req, _ := http.NewRequest("DELETE", h.serviceBaseURL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err == nil && resp.StatusCode >= 300 {
		return fmt.Errorf("service returned HTTP %d", resp.StatusCode)
	}
	// It's normal for the request to return an I/O error if the service immediately quit before sending a response
	return nil
}

// CreateEntity tells the test service to create a new instance of whatever
// kind of entity it manages, with the given parameters. The service must
// respond with the entity's resource URL in a Location header; that URL may
// be relative to the service base URL.
//
// The format of entityParams is defined by the caller; this low-level method
// simply calls json.Marshal on it.
func (h *TestHarness) CreateEntity(
	entityParams interface{},
	description string,
	logger Logger,
) (*TestServiceEntity, error) {
	if logger == nil {
		logger = NullLogger()
	}

	data, err := json.Marshal(entityParams)
	if err != nil {
		return nil, err
	}

	logger.Printf("Creating test service entity (%s) with parameters: %s", description, string(data))
	req, err := http.NewRequest("POST", h.serviceBaseURL, bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var message string
		if resp.Body != nil {
			data, _ = io.ReadAll(resp.Body)
			message = ": " + string(data)
			resp.Body.Close()
		}
		return nil, fmt.Errorf("unexpected response status %d from test service%s", resp.StatusCode, message)
	}
	resourceURL := resp.Header.Get("Location")
	if resourceURL == "" {
		return nil, errors.New("test service did not return a Location header with a resource URL")
	}
	if !strings.HasPrefix(resourceURL, "http:") && !strings.HasPrefix(resourceURL, "https:") {
		resourceURL = h.serviceBaseURL + resourceURL
	}

	return &TestServiceEntity{
		resourceURL: resourceURL,
		logger:      logger,
	}, nil
}

// Close tells the test service to dispose of this entity. For a replay
// session that means stopping the system under test and releasing whatever
// resources the replay holds.
func (e *TestServiceEntity) Close() error {
	req, err := http.NewRequest("DELETE", e.resourceURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	if resp.Body != nil {
		_ = resp.Body.Close()
	}
	if resp.StatusCode != 200 && resp.StatusCode != 204 {
		return fmt.Errorf("DELETE request to test service returned HTTP status %d", resp.StatusCode)
	}
	return nil
}

// SendCommand sends a command to the test service entity, merging any
// additional parameters into the request body.
func (e *TestServiceEntity) SendCommand(command string, additionalParams ...map[string]interface{}) error {
	allParams := map[string]interface{}{"command": command}
	for _, p := range additionalParams {
		for k, v := range p {
			allParams[k] = v
		}
	}
	data, _ := json.Marshal(allParams)
	e.logger.Printf("Sending command: %s", string(data))
	resp, err := http.DefaultClient.Post(e.resourceURL, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("command returned HTTP status %d", resp.StatusCode)
	}
	return nil
}
