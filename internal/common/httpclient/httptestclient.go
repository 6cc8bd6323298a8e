package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sync"
)

// TestHTTPClient serves requests directly from an http.Handler, usually the
// chardevd router, without opening a connection.
type TestHTTPClient struct {
	handler http.Handler
	headers map[string]string
}

// NewTestClient creates a test client for handler. Only the Headers field
// of opts is used.
func NewTestClient(handler http.Handler, opts ...ClientOptions) (*TestHTTPClient, error) {
	if handler == nil {
		return nil, fmt.Errorf("test client needs a handler")
	}
	c := &TestHTTPClient{handler: handler}
	if len(opts) > 0 {
		c.headers = opts[0].Headers
	}
	return c, nil
}

func (c *TestHTTPClient) newRequest(ctx context.Context, opts RequestOptions) (*http.Request, error) {
	u := url.URL{Scheme: "http", Host: socketHost, Path: path.Join("/", opts.Path)}
	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bytes.NewReader(opts.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	setHeaders(req, opts, c.headers)
	return req, nil
}

// DoRequest runs the request through the handler and records the response.
func (c *TestHTTPClient) DoRequest(ctx context.Context, opts RequestOptions) (*Response, error) {
	req, err := c.newRequest(ctx, opts)
	if err != nil {
		return nil, err
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)

	if rr.Code >= 400 {
		return nil, newHTTPError(rr.Code, rr.Body.Bytes())
	}
	return &Response{
		StatusCode: rr.Code,
		Header:     rr.Header(),
		Body:       rr.Body.Bytes(),
	}, nil
}

// StreamRequest runs the handler in the background and returns its body as
// it is written. Closing the body cancels the request.
func (c *TestHTTPClient) StreamRequest(ctx context.Context, opts RequestOptions) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, opts)
	if err != nil {
		cancel()
		return nil, err
	}

	pr, pw := io.Pipe()
	w := &pipeResponseWriter{
		header:  http.Header{},
		pw:      pw,
		started: make(chan struct{}),
	}
	go func() {
		c.handler.ServeHTTP(w, req)
		w.WriteHeader(http.StatusOK)
		pw.Close()
	}()
	<-w.started

	if w.status >= 400 {
		defer cancel()
		body, _ := io.ReadAll(pr)
		return nil, newHTTPError(w.status, body)
	}
	return &streamBody{PipeReader: pr, cancel: cancel}, nil
}

type pipeResponseWriter struct {
	header  http.Header
	pw      *io.PipeWriter
	once    sync.Once
	status  int
	started chan struct{}
}

func (w *pipeResponseWriter) Header() http.Header {
	return w.header
}

func (w *pipeResponseWriter) WriteHeader(code int) {
	w.once.Do(func() {
		w.status = code
		close(w.started)
	})
}

func (w *pipeResponseWriter) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.pw.Write(p)
}

func (w *pipeResponseWriter) Flush() {
	w.WriteHeader(http.StatusOK)
}

type streamBody struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	b.cancel()
	return b.PipeReader.Close()
}
