// Package api is the Go client for chardevd. It reaches the daemon over the
// unix socket registered at the device node or over TCP, and exposes open
// sessions as io.ReadWriteSeeker values.
package api

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/chardev/chardev/internal/common/httpclient"
	jsonitor "github.com/json-iterator/go"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// ClientVersion is the version of this client library. It is sent with
// every request so chardevd can reject incompatible clients.
const ClientVersion = "0.1.0"

const (
	clientVersionHeader = "X-Chardev-Client-Version"
	headerPosition      = "X-Chardev-Position"
)

// Error is returned for error responses. errors.Is matches its errno, e.g.
// errors.Is(err, syscall.ENOMEM) after writing past the end of storage.
type Error = httpclient.HTTPError

// Client talks to chardevd.
type Client struct {
	http httpclient.HTTPClientInterface
}

// ClientOption is a function type for configuring client behavior.
type ClientOption func(*httpclient.ClientOptions)

// WithDialTimeout sets how long the client waits to connect to the daemon.
func WithDialTimeout(timeout time.Duration) ClientOption {
	return func(c *httpclient.ClientOptions) {
		c.DialTimeout = timeout
	}
}

// WithTimeout bounds each request, including reading the response. Event
// streams are cut off by it too.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *httpclient.ClientOptions) {
		c.Timeout = timeout
	}
}

// WithMaxRetries sets how many times a request is attempted while the
// daemon cannot be reached.
func WithMaxRetries(maxRetries int) ClientOption {
	return func(c *httpclient.ClientOptions) {
		c.MaxRetries = maxRetries
	}
}

// WithRetryDelay sets the initial delay between attempts.
func WithRetryDelay(delay time.Duration) ClientOption {
	return func(c *httpclient.ClientOptions) {
		c.RetryDelay = delay
	}
}

type endpoint struct {
	serverURL  string
	deviceNode string
}

func (e endpoint) GetServerURL() string  { return e.serverURL }
func (e endpoint) GetDeviceNode() string { return e.deviceNode }

// NewClient creates a client for target, which is either an http(s) URL or
// the path of the device node socket.
func NewClient(target string, opts ...ClientOption) (*Client, error) {
	if target == "" {
		return nil, fmt.Errorf("server URL or device node is required")
	}
	config := httpclient.DefaultClientOptions()
	for _, opt := range opts {
		opt(&config)
	}
	config.Headers = map[string]string{clientVersionHeader: ClientVersion}

	var ep endpoint
	if strings.Contains(target, "://") {
		ep.serverURL = target
	} else {
		ep.deviceNode = target
	}
	hc, err := httpclient.NewClient(ep, config)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc}, nil
}

// NewClientWithTransport creates a client that sends requests through hc.
func NewClientWithTransport(hc httpclient.HTTPClientInterface) *Client {
	return &Client{http: hc}
}

func (c *Client) do(ctx context.Context, opts httpclient.RequestOptions, out any) (*httpclient.Response, error) {
	rsp, err := c.http.DoRequest(ctx, opts)
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := json.Unmarshal(rsp.Body, out); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %v", opts.Path, err)
		}
	}
	return rsp, nil
}

// Version returns the daemon and API versions.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	v := &VersionInfo{}
	if _, err := c.do(ctx, httpclient.RequestOptions{Method: http.MethodGet, Path: "/version"}, v); err != nil {
		return nil, err
	}
	return v, nil
}

// CheckVersion fails unless the daemon API is in the same minor release
// line as this client.
func (c *Client) CheckVersion(ctx context.Context) error {
	v, err := c.Version(ctx)
	if err != nil {
		return err
	}
	return checkAPIVersion(v.ApiVersion)
}

func checkAPIVersion(apiVersion string) error {
	constraint, err := semver.NewConstraint("~" + ClientVersion)
	if err != nil {
		return err
	}
	sv, err := semver.NewVersion(apiVersion)
	if err != nil {
		return fmt.Errorf("invalid server API version %q: %v", apiVersion, err)
	}
	if !constraint.Check(sv) {
		return fmt.Errorf("server API version %s is not compatible with client %s", apiVersion, ClientVersion)
	}
	return nil
}

// Ready returns nil when the daemon answers its readiness check.
func (c *Client) Ready(ctx context.Context) error {
	_, err := c.do(ctx, httpclient.RequestOptions{Method: http.MethodGet, Path: "/ready"}, nil)
	return err
}

// Device describes the device.
func (c *Client) Device(ctx context.Context) (*DeviceInfo, error) {
	info := &DeviceInfo{}
	if _, err := c.do(ctx, httpclient.RequestOptions{Method: http.MethodGet, Path: "/device"}, info); err != nil {
		return nil, err
	}
	return info, nil
}

// OpenSession opens a session positioned at offset 0.
func (c *Client) OpenSession(ctx context.Context) (*SessionInfo, error) {
	info := &SessionInfo{}
	if _, err := c.do(ctx, httpclient.RequestOptions{Method: http.MethodPost, Path: "/sessions"}, info); err != nil {
		return nil, err
	}
	return info, nil
}

// Session describes the session id.
func (c *Client) Session(ctx context.Context, id string) (*SessionInfo, error) {
	info := &SessionInfo{}
	if _, err := c.do(ctx, httpclient.RequestOptions{Method: http.MethodGet, Path: sessionPath(id)}, info); err != nil {
		return nil, err
	}
	return info, nil
}

// Sessions lists the open sessions, oldest first.
func (c *Client) Sessions(ctx context.Context) ([]SessionInfo, error) {
	list := &sessionList{}
	if _, err := c.do(ctx, httpclient.RequestOptions{Method: http.MethodGet, Path: "/sessions"}, list); err != nil {
		return nil, err
	}
	return list.Sessions, nil
}

// CloseSession closes the session id.
func (c *Client) CloseSession(ctx context.Context, id string) error {
	_, err := c.do(ctx, httpclient.RequestOptions{Method: http.MethodDelete, Path: sessionPath(id)}, nil)
	return err
}

// Seek moves the session position and returns the new position.
func (c *Client) Seek(ctx context.Context, id string, offset int64, whence int) (int64, error) {
	body, err := json.Marshal(seekRequest{Offset: offset, Whence: whence})
	if err != nil {
		return 0, err
	}
	rsp := &seekResponse{}
	if _, err := c.do(ctx, httpclient.RequestOptions{
		Method: http.MethodPost,
		Path:   sessionPath(id) + "/seek",
		Body:   body,
	}, rsp); err != nil {
		return 0, err
	}
	return rsp.Position, nil
}

// Read reads up to count bytes at the session position. It returns the
// bytes and the new position; no bytes means the end of storage.
func (c *Client) Read(ctx context.Context, id string, count int) ([]byte, int64, error) {
	rsp, err := c.do(ctx, httpclient.RequestOptions{
		Method:      http.MethodGet,
		Path:        sessionPath(id) + "/data",
		QueryParams: map[string]string{"count": strconv.Itoa(count)},
	}, nil)
	if err != nil {
		return nil, 0, err
	}
	pos, err := strconv.ParseInt(rsp.Header.Get(headerPosition), 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid %s header: %v", headerPosition, err)
	}
	return rsp.Body, pos, nil
}

// Write writes data at the session position. It returns how many bytes
// were stored and the new position; a short count means storage ended.
func (c *Client) Write(ctx context.Context, id string, data []byte) (int, int64, error) {
	rsp := &writeResponse{}
	if _, err := c.do(ctx, httpclient.RequestOptions{
		Method:      http.MethodPut,
		Path:        sessionPath(id) + "/data",
		Body:        data,
		ContentType: "application/octet-stream",
	}, rsp); err != nil {
		return 0, 0, err
	}
	return rsp.Count, rsp.Position, nil
}

// WatchEvents calls fn for every store event until ctx is done, the stream
// ends or fn returns an error.
func (c *Client) WatchEvents(ctx context.Context, fn func(Event) error) error {
	body, err := c.http.StreamRequest(ctx, httpclient.RequestOptions{Method: http.MethodGet, Path: "/device/events"})
	if err != nil {
		return err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return fmt.Errorf("invalid event: %v", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func sessionPath(id string) string {
	return "/sessions/" + id
}
