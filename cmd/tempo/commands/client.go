package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/teranos/tempo/config"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/internal/httpclient"
)

// apiClient talks to a running tempo daemon over its control API. Task and
// executor mutations go through the daemon rather than the database so the
// daemon's executors stay in sync with what the CLI changes.
type apiClient struct {
	base string
	http *httpclient.SaferClient
}

// newAPIClient resolves the daemon address from configuration
func newAPIClient() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return &apiClient{
		base: "http://" + cfg.Server.Addr(),
		http: httpclient.NewSaferClient(10 * time.Second),
	}, nil
}

// do sends one request and decodes the JSON response into out when out is
// non-nil. Error bodies from the daemon are unwrapped into plain errors.
func (c *apiClient) do(method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WithHint(err, "is the tempo daemon running? start it with 'tempo serve'")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return errors.New(apiErr.Error)
		}
		return errors.Newf("daemon returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

func (c *apiClient) get(path string, out interface{}) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *apiClient) post(path string, body, out interface{}) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *apiClient) delete(path string, out interface{}) error {
	return c.do(http.MethodDelete, path, nil, out)
}
