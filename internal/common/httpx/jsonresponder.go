package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chardev/chardev/internal/common/logtrace"
	"github.com/rs/zerolog/log"
)

// SendJsonRsp sends msg as JSON. A string or []byte that is already valid JSON
// is sent as is. Location is set only for 201 responses.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any, location ...string) {
	var msgJson []byte
	switch v := msg.(type) {
	case string:
		if json.Valid([]byte(v)) {
			msgJson = []byte(v)
		}
	case []byte:
		if json.Valid(v) {
			msgJson = v
		}
	case nil:
	default:
		var err error
		msgJson, err = json.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Err(err).Msg("unable to marshal json")
			ErrApplicationError("Id: " + logtrace.RequestIdFromContext(ctx)).Send(w)
			return
		}
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	if statusCode == http.StatusCreated && len(location) > 0 {
		w.Header().Set("Location", location[0])
	}
	w.WriteHeader(statusCode)
	if statusCode != http.StatusNoContent {
		w.Write(msgJson)
	}
}
