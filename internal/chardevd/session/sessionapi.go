package session

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/chardev/chardev/internal/common/apperrors"
	"github.com/chardev/chardev/internal/common/httpx"
	"github.com/chardev/chardev/internal/common/uuid"
	"github.com/chardev/chardev/internal/device/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const (
	// HeaderCount carries the number of bytes returned by a read.
	HeaderCount = "X-Chardev-Count"
	// HeaderPosition carries the session position after a read.
	HeaderPosition = "X-Chardev-Position"
)

// SessionInfo describes an open session.
type SessionInfo struct {
	ID       uuid.UUID `json:"id"`
	Position int64     `json:"position"`
	OpenedAt time.Time `json:"openedAt"`
}

// SessionList is the body of GET /sessions.
type SessionList struct {
	Sessions []SessionInfo `json:"sessions"`
}

// SeekRequest is the body of POST /sessions/{id}/seek. Both fields are
// required; offset may be zero.
type SeekRequest struct {
	Offset *int64 `json:"offset" validate:"required"`
	Whence *int   `json:"whence" validate:"required,oneof=0 1 2"`
}

// SeekResponse carries the new position.
type SeekResponse struct {
	Position int64 `json:"position"`
}

// WriteResponse reports how much of the body was stored.
type WriteResponse struct {
	Count    int   `json:"count"`
	Position int64 `json:"position"`
}

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

func newSessionInfo(sess *store.Session) SessionInfo {
	return SessionInfo{
		ID:       sess.ID(),
		Position: sess.Position(),
		OpenedAt: sess.OpenedAt(),
	}
}

func manager() (SessionManager, apperrors.Error) {
	m := ActiveSessionManager()
	if m == nil {
		return nil, ErrNotReady
	}
	return m, nil
}

// resolveSession finds the session named by the {id} path parameter.
func resolveSession(r *http.Request) (SessionManager, *store.Session, error) {
	m, err := manager()
	if err != nil {
		return nil, nil, err
	}
	id, goerr := uuid.Parse(chi.URLParam(r, "id"))
	if goerr != nil || !uuid.IsUUIDv7(id) {
		return nil, nil, ErrInvalidSession
	}
	sess, err := m.GetSession(id)
	if err != nil {
		return nil, nil, err
	}
	return m, sess, nil
}

func openSession(r *http.Request) (*httpx.Response, error) {
	m, err := manager()
	if err != nil {
		return nil, err
	}
	sess := m.OpenSession(r.Context())
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/sessions/" + sess.ID().String(),
		Response:   newSessionInfo(sess),
	}, nil
}

func closeSession(r *http.Request) (*httpx.Response, error) {
	m, sess, err := resolveSession(r)
	if err != nil {
		return nil, err
	}
	if err := m.CloseSession(r.Context(), sess.ID()); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusNoContent,
	}, nil
}

func getSession(r *http.Request) (*httpx.Response, error) {
	_, sess, err := resolveSession(r)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   newSessionInfo(sess),
	}, nil
}

func listSessions(r *http.Request) (*httpx.Response, error) {
	m, err := manager()
	if err != nil {
		return nil, err
	}
	list := SessionList{Sessions: []SessionInfo{}}
	for _, sess := range m.ListSessions() {
		list.Sessions = append(list.Sessions, newSessionInfo(sess))
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   list,
	}, nil
}

func seekSession(r *http.Request) (*httpx.Response, error) {
	m, sess, err := resolveSession(r)
	if err != nil {
		return nil, err
	}
	req := &SeekRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := requestValidator.Struct(req); err != nil {
		return nil, store.ErrInvalidArgument.Msg("invalid seek request: " + err.Error())
	}
	pos, err := m.Store().Seek(sess, *req.Offset, store.Whence(*req.Whence))
	if err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Str("session_id", sess.ID().String()).Msg("seek failed")
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   SeekResponse{Position: pos},
	}, nil
}

// readSession returns up to count bytes as the body. A missing count reads
// to the end of storage.
func readSession(r *http.Request) (*httpx.Response, error) {
	m, sess, err := resolveSession(r)
	if err != nil {
		return nil, err
	}
	count := m.Store().Capacity()
	if v := r.URL.Query().Get("count"); v != "" {
		n, goerr := strconv.Atoi(v)
		if goerr != nil {
			return nil, store.ErrInvalidArgument.Msg("count must be an integer")
		}
		count = n
	}
	data, err := m.Store().ReadN(sess, count)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode:  http.StatusOK,
		ContentType: httpx.ContentTypeOctetStream,
		Response:    data,
		Headers: map[string]string{
			HeaderCount:    strconv.Itoa(len(data)),
			HeaderPosition: strconv.FormatInt(sess.Position(), 10),
		},
	}, nil
}

// writeSession stores the request body at the session position. Bytes past
// the end of storage are never stored, so at most capacity bytes are read
// from the body.
func writeSession(r *http.Request) (*httpx.Response, error) {
	m, sess, err := resolveSession(r)
	if err != nil {
		return nil, err
	}
	var src []byte
	if r.Body != nil {
		var goerr error
		src, goerr = io.ReadAll(io.LimitReader(r.Body, int64(m.Store().Capacity())))
		if goerr != nil {
			log.Ctx(r.Context()).Error().Err(goerr).Msg("unable to read request body")
			return nil, store.ErrTransferFault.MsgErr("unable to read request body", goerr)
		}
	}
	n, err := m.Store().Write(sess, src)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   WriteResponse{Count: n, Position: sess.Position()},
	}, nil
}
