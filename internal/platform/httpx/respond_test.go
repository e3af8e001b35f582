package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	Success(rr, http.StatusCreated, "created", map[string]int{"id": 4})

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "created", body["message"])
	assert.Equal(t, map[string]any{"id": float64(4)}, body["data"])
}

func TestDecodeJSON(t *testing.T) {
	var target struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, "a@b.c", target.Email)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.ErrorIs(t, DecodeJSON(req, &target), ErrEmptyBody)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	assert.ErrorIs(t, DecodeJSON(req, &target), ErrBadJSON)
}

func TestValidationFailed(t *testing.T) {
	type form struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}
	v := NewValidator()
	err := v.Struct(form{Email: "nope", Password: "short"})
	require.Error(t, err)

	rr := httptest.NewRecorder()
	ValidationFailed(rr, err)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var body struct {
		Status  string            `json:"status"`
		Message map[string]string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, CodeValidation, body.Status)
	assert.Equal(t, "must be a valid email address", body.Message["email"])
	assert.Equal(t, "must be at least 8 characters", body.Message["password"])
}
