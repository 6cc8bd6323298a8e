// Package httpclient provides the HTTP client used to reach chardevd, either
// over TCP or over the unix socket registered at the device node. It builds
// requests, retries connection failures and turns error bodies into
// HTTPError values.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/tidwall/gjson"
)

// Configurator provides the daemon endpoint. When GetDeviceNode returns a
// path the client dials that unix socket and ignores the server URL.
type Configurator interface {
	GetServerURL() string
	GetDeviceNode() string
}

// socketHost is the placeholder host used for requests over a unix socket.
const socketHost = "unix"

// HTTPError represents an error response from chardevd.
type HTTPError struct {
	StatusCode int           // HTTP status code of the response
	Message    string        // error message from the body, or the raw body
	Errno      syscall.Errno // errno reported by the server, 0 if none
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	return e.Message
}

// Unwrap exposes the errno so callers can use errors.Is(err, syscall.EINVAL).
func (e *HTTPError) Unwrap() error {
	if e.Errno == 0 {
		return nil
	}
	return e.Errno
}

// HTTPClient makes requests to chardevd.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	opts       ClientOptions
}

// ClientOptions contains options for configuring the HTTP client.
type ClientOptions struct {
	Timeout     time.Duration     // per-request timeout, 0 for none
	DialTimeout time.Duration     // connection setup timeout
	MaxRetries  int               // attempts made when the daemon cannot be reached
	RetryDelay  time.Duration     // initial delay between attempts
	Headers     map[string]string // sent with every request
}

// DefaultClientOptions returns the options used when none are given.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		DialTimeout: 5 * time.Second,
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
	}
}

// NewClient creates a client for the endpoint named by config.
func NewClient(config Configurator, opts ...ClientOptions) (*HTTPClient, error) {
	clientOpts := DefaultClientOptions()
	if len(opts) > 0 {
		clientOpts = opts[0]
	}

	dialer := &net.Dialer{Timeout: clientOpts.DialTimeout}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
	}

	var baseURL *url.URL
	if socketPath := config.GetDeviceNode(); socketPath != "" {
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socketPath)
		}
		baseURL = &url.URL{Scheme: "http", Host: socketHost}
	} else {
		serverURL := config.GetServerURL()
		if serverURL == "" {
			return nil, fmt.Errorf("either a server URL or a device node is required")
		}
		u, err := url.Parse(serverURL)
		if err != nil {
			return nil, fmt.Errorf("invalid server URL: %v", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", serverURL)
		}
		baseURL = u
	}

	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   clientOpts.Timeout,
		},
		opts: clientOpts,
	}, nil
}

// RequestOptions contains options for making HTTP requests.
type RequestOptions struct {
	Method      string            // HTTP method (GET, POST, PUT, DELETE)
	Path        string            // API endpoint path
	QueryParams map[string]string // optional query parameters
	Body        []byte            // optional request body
	ContentType string            // defaults to application/json
}

// Response is a successful response with its body read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Location returns the Location header of the response.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

// DoRequest makes an HTTP request with the given options. Requests are
// retried only while the connection cannot be established, since a request
// that reached the daemon may already have moved a session cursor.
func (c *HTTPClient) DoRequest(ctx context.Context, opts RequestOptions) (*Response, error) {
	var rsp *Response
	err := c.withRetry(ctx, func() error {
		resp, err := c.send(ctx, opts)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("failed to read response body: %v", err))
		}
		if resp.StatusCode >= 400 {
			return retry.Unrecoverable(newHTTPError(resp.StatusCode, body))
		}
		rsp = &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rsp, nil
}

// StreamRequest makes an HTTP request and returns the response body
// unread. The caller is responsible for closing it.
func (c *HTTPClient) StreamRequest(ctx context.Context, opts RequestOptions) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := c.withRetry(ctx, func() error {
		resp, err := c.send(ctx, opts)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return retry.Unrecoverable(newHTTPError(resp.StatusCode, data))
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *HTTPClient) withRetry(ctx context.Context, fn func() error) error {
	attempts := c.opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(c.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// send issues one request. Errors other than dial failures are marked
// unrecoverable.
func (c *HTTPClient) send(ctx context.Context, opts RequestOptions) (*http.Response, error) {
	req, err := c.newRequest(ctx, opts)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("request failed: %w", err)
		if !isDialError(err) {
			return nil, retry.Unrecoverable(err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, opts RequestOptions) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join("/", u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bytes.NewReader(opts.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	setHeaders(req, opts, c.opts.Headers)
	return req, nil
}

func setHeaders(req *http.Request, opts RequestOptions, headers map[string]string) {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// newHTTPError builds an HTTPError from an error response. chardevd sends
// {"result": 0, "error": "...", "errno": n}; anything else is kept verbatim.
func newHTTPError(statusCode int, body []byte) *HTTPError {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error").String(); msg != "" {
			return &HTTPError{
				StatusCode: statusCode,
				Message:    msg,
				Errno:      syscall.Errno(gjson.GetBytes(body, "errno").Int()),
			}
		}
	}
	if statusCode == http.StatusNotFound {
		return &HTTPError{
			StatusCode: statusCode,
			Message:    "server doesn't implement this endpoint",
		}
	}
	return &HTTPError{
		StatusCode: statusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}
