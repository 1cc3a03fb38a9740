package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"usercenter/apperror"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestErrorHandler() (*ErrorHandler, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewErrorHandler(zap.New(core))
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return h, logs
}

func writeErr(h *ErrorHandler, method, target string, err error) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := restful.NewRequest(httptest.NewRequest(method, target, nil))
	h.WriteError(req, restful.NewResponse(rec), err)
	return rec
}

func TestWriteErrorRequestFault(t *testing.T) {
	h, logs := newTestErrorHandler()

	rec := writeErr(h, http.MethodDelete, "/api/v1/user/9?x=1", apperror.NotFound("user %d not found", 9))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{
		"statusCode": 404,
		"timestamp": "2024-05-01T12:00:00Z",
		"path": "/api/v1/user/9?x=1",
		"method": "DELETE",
		"message": "user 9 not found"
	}`, rec.Body.String())

	entries := logs.FilterMessage("user 9 not found").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestWriteErrorPersistenceFault(t *testing.T) {
	h, logs := newTestErrorHandler()
	cause := errors.New("Duplicate entry 'bob' for key 'username'")

	rec := writeErr(h, http.MethodPost, "/api/v1/user", &apperror.PersistenceError{Code: 1062, Err: cause})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{
		"errorCode": 1062,
		"timestamp": "2024-05-01T12:00:00Z",
		"errorMsg": "Duplicate entry 'bob' for key 'username'"
	}`, rec.Body.String())

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(1062), fields["error_code"])
	assert.NotEmpty(t, fields["stack"])
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	h, logs := newTestErrorHandler()

	rec := writeErr(h, http.MethodGet, "/api/v1/user", errors.New("connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal Server Error", body.Message)

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "connection reset by peer", entries[0].ContextMap()["error"])
}

func TestServiceErrorHandler(t *testing.T) {
	h, _ := newTestErrorHandler()
	rec := httptest.NewRecorder()
	req := restful.NewRequest(httptest.NewRequest(http.MethodPut, "/api/v1/user/1", nil))

	h.ServiceErrorHandler(restful.NewErrorWithHeader(http.StatusMethodNotAllowed, "405: Method Not Allowed",
		http.Header{"Allow": {"GET, PATCH, DELETE"}}), req, restful.NewResponse(rec))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, PATCH, DELETE", rec.Header().Get("Allow"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusMethodNotAllowed, body.StatusCode)
	assert.Equal(t, "405: Method Not Allowed", body.Message)
}

func TestRecoverHandler(t *testing.T) {
	h, logs := newTestErrorHandler()
	rec := httptest.NewRecorder()

	h.RecoverHandler("boom", rec)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"statusCode":500,"timestamp":"2024-05-01T12:00:00Z","message":"Internal Server Error"}`, rec.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("Recovered from panic").Len())
}
