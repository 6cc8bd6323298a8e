package session

import (
	"net/http"

	"github.com/chardev/chardev/internal/common/httpx"
	"github.com/go-chi/chi/v5"
)

// ResponseHandlerParam binds a handler to a method and path.
type ResponseHandlerParam struct {
	Method  string
	Path    string
	Handler httpx.RequestHandler
}

var sessionHandlers = []ResponseHandlerParam{
	{
		Method:  http.MethodPost,
		Path:    "/",
		Handler: openSession,
	},
	{
		Method:  http.MethodGet,
		Path:    "/",
		Handler: listSessions,
	},
	{
		Method:  http.MethodGet,
		Path:    "/{id}",
		Handler: getSession,
	},
	{
		Method:  http.MethodDelete,
		Path:    "/{id}",
		Handler: closeSession,
	},
	{
		Method:  http.MethodPost,
		Path:    "/{id}/seek",
		Handler: seekSession,
	},
	{
		Method:  http.MethodGet,
		Path:    "/{id}/data",
		Handler: readSession,
	},
	{
		Method:  http.MethodPut,
		Path:    "/{id}/data",
		Handler: writeSession,
	},
}

// Router registers the session routes on r.
func Router(r chi.Router) {
	for _, handler := range sessionHandlers {
		r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
}
