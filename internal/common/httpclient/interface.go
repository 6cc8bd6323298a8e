package httpclient

import (
	"context"
	"io"
)

// HTTPClientInterface is implemented by HTTPClient and by TestHTTPClient,
// which serves requests from an in-process handler.
type HTTPClientInterface interface {
	// DoRequest makes an HTTP request and returns the response with its body
	// read, or an *HTTPError for error statuses.
	DoRequest(ctx context.Context, opts RequestOptions) (*Response, error)

	// StreamRequest makes an HTTP request and returns the body unread. The
	// caller closes it.
	StreamRequest(ctx context.Context, opts RequestOptions) (io.ReadCloser, error)
}

var _ HTTPClientInterface = &HTTPClient{}
var _ HTTPClientInterface = &TestHTTPClient{}
