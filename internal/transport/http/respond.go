package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
)

const maxBodyBytes = 1 << 20

var errInvalidID = errors.New("id must be a positive integer")

// errorBody is the shape of every non-2xx response.
type errorBody struct {
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code. Validation failures echo the request
// payload; internal failures only carry the generic message.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error, message string, payload []byte) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: message, Error: verr.Error(), Payload: echo(payload)})
	case errors.Is(err, errInvalidID):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: message, Error: err.Error()})
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Message: capitalize(errors.Cause(err).Error())})
	case domain.IsConflict(err):
		writeJSON(w, http.StatusConflict, errorBody{Message: capitalize(errors.Cause(err).Error())})
	default:
		log.WithError(err).Error(message)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: message})
	}
}

// decode reads the request body into dst. On failure it returns the raw body so the
// caller can echo it.
func decode(r *http.Request, dst interface{}) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.ValidationError{Field: "body", Reason: "unreadable"}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return body, &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return body, nil
}

func echo(payload []byte) interface{} {
	if len(payload) == 0 {
		return nil
	}
	if json.Valid(payload) {
		return json.RawMessage(payload)
	}
	return string(payload)
}

func pathID(r *http.Request, name string) (int64, error) {
	return parseID(chi.URLParam(r, name))
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
