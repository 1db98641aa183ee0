// Package upstream talks to the third-party data API.
package upstream

//go:generate go run go.uber.org/mock/mockgen -source=upstream.go -destination=mock/upstream.go -package=mock_upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Response is one upstream answer. Body always holds valid JSON: answers
// that do not parse as JSON are wrapped as {"raw": <body>}.
type Response struct {
	Status int
	Body   json.RawMessage
}

type Client interface {
	Call(ctx context.Context, path string, query url.Values, header http.Header) (*Response, error)
}

// HTTPClient calls the upstream API over HTTP, appending the configured
// credential to every request's query string.
type HTTPClient struct {
	baseURL  *url.URL
	doer     *http.Client
	keyParam string
	keyValue string
}

var _ Client = (*HTTPClient)(nil)

type Option interface {
	apply(c *HTTPClient)
}

var (
	_ Option = doerOption{}
	_ Option = credentialOption{}
)

type doerOption struct {
	doer *http.Client
}

func (o doerOption) apply(c *HTTPClient) {
	c.doer = o.doer
}

func WithHTTPClient(doer *http.Client) doerOption {
	return doerOption{doer}
}

type credentialOption struct {
	param, value string
}

func (o credentialOption) apply(c *HTTPClient) {
	c.keyParam = o.param
	c.keyValue = o.value
}

// WithCredential appends param=value to every outbound query.
func WithCredential(param, value string) credentialOption {
	return credentialOption{param, value}
}

func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base URL: %w", err)
	}
	c := &HTTPClient{
		baseURL: u,
		doer:    http.DefaultClient,
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c, nil
}

func (c *HTTPClient) Call(ctx context.Context, path string, query url.Values, header http.Header) (*Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	if c.keyParam != "" {
		q.Set(c.keyParam, c.keyValue)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		req.Header[k] = vs
	}

	res, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: res.StatusCode, Body: WrapBody(body)}, nil
}

// WrapBody returns body unchanged when it is valid JSON, otherwise wraps
// it so callers always receive a JSON document.
func WrapBody(body []byte) json.RawMessage {
	if json.Valid(body) && len(body) > 0 {
		return json.RawMessage(body)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(body)})
	return wrapped
}
