package dispatch

import (
	"net/http"

	"nnoitra-backend/internal/apperr"
)

// Envelope statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the response body of every action: status, an optional
// message and any action-specific fields at the top level.
type Envelope map[string]any

// Success builds a success envelope with the given message ("" for none)
func Success(message string) Envelope {
	e := Envelope{"status": StatusSuccess}
	if message != "" {
		e["message"] = message
	}
	return e
}

// Failure builds an error envelope
func Failure(message string) Envelope {
	return Envelope{"status": StatusError, "message": message}
}

// With sets an action-specific field and returns e
func (e Envelope) With(key string, value any) Envelope {
	e[key] = value
	return e
}

// Status returns the envelope status
func (e Envelope) Status() string {
	s, _ := e["status"].(string)
	return s
}

// Message returns the envelope message, if any
func (e Envelope) Message() string {
	s, _ := e["message"].(string)
	return s
}

// Response is an envelope together with the HTTP status it maps to
type Response struct {
	Code int
	Body Envelope
}

// OK reports whether the action succeeded
func (r Response) OK() bool {
	return r.Body.Status() == StatusSuccess
}

// HTTPStatus maps an error kind to an HTTP status code
func HTTPStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindInvalidCredentials, apperr.KindInvalidOrExpiredSession:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse turns any error into an error envelope. Errors without a
// client-facing kind become "Internal server error.".
func ErrorResponse(err error) Response {
	return Response{
		Code: HTTPStatus(apperr.KindOf(err)),
		Body: Failure(apperr.Message(err)),
	}
}
