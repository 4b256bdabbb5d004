package dispatch

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nnoitra-backend/internal/apperr"
)

func TestEnvelopeShape(t *testing.T) {
	b, err := json.Marshal(Success("Login successful.").With("token", "t").With("expires_at", int64(42)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","message":"Login successful.","token":"t","expires_at":42}`, string(b))

	b, err = json.Marshal(Success("").With("history", []string{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","history":[]}`, string(b))

	b, err = json.Marshal(Failure("Invalid action."))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","message":"Invalid action."}`, string(b))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindInvalidInput:            http.StatusBadRequest,
		apperr.KindInvalidCredentials:      http.StatusUnauthorized,
		apperr.KindInvalidOrExpiredSession: http.StatusUnauthorized,
		apperr.KindNotFound:                http.StatusNotFound,
		apperr.KindAlreadyExists:           http.StatusConflict,
		apperr.KindInternal:                http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind.String())
	}
}

func TestPayloadDecoding(t *testing.T) {
	req := decodeSetData(Payload{"token": "t", "category": "c", "key": "k"})
	assert.Nil(t, req.Value, "absent value stays nil")

	req = decodeSetData(Payload{"token": "t", "category": "c", "key": "k", "value": ""})
	require.NotNil(t, req.Value)
	assert.Empty(t, *req.Value)

	pw := decodePasswd(Payload{"token": "t", "old_password": "a", "new_password": "b"})
	assert.Equal(t, passwdRequest{Token: "t", OldPassword: "a", NewPassword: "b"}, pw)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, ActionUserAdd, Canonical("add_user"))
	assert.Equal(t, ActionPasswd, Canonical("change_password"))
	assert.Equal(t, "whatever", Canonical("whatever"))
}
