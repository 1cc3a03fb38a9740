package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"usercenter/apperror"

	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every request or domain fault.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
	Method     string `json:"method"`
	Message    string `json:"message"`
}

// PersistenceErrorResponse is the body of a database fault. ErrorCode is the
// driver's code, not an HTTP status; the response status is always 500.
type PersistenceErrorResponse struct {
	ErrorCode int    `json:"errorCode"`
	Timestamp string `json:"timestamp"`
	ErrorMsg  string `json:"errorMsg"`
}

// ErrorHandler translates errors returned by services into JSON responses.
type ErrorHandler struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger.Named("errors"), now: time.Now}
}

// WriteError logs err and writes its response. It never panics on a write failure.
func (h *ErrorHandler) WriteError(req *restful.Request, resp *restful.Response, err error) {
	timestamp := h.now().UTC().Format(time.RFC3339Nano)

	var pe *apperror.PersistenceError
	if errors.As(err, &pe) {
		h.logger.Error(err.Error(),
			zap.Int("error_code", pe.Code),
			zap.String("path", req.Request.URL.Path),
			zap.Error(err),
			zap.Stack("stack"),
		)
		h.write(resp, http.StatusInternalServerError, PersistenceErrorResponse{
			ErrorCode: pe.Code,
			Timestamp: timestamp,
			ErrorMsg:  err.Error(),
		})
		return
	}

	status := apperror.StatusOf(err)
	message := err.Error()
	var appErr *apperror.AppError
	if status == http.StatusInternalServerError && !errors.As(err, &appErr) {
		message = http.StatusText(status)
	}

	fields := []zap.Field{
		zap.Int("status", status),
		zap.String("method", req.Request.Method),
		zap.String("path", req.Request.URL.Path),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, append(fields, zap.Stack("stack"))...)
	} else {
		h.logger.Warn(message, fields...)
	}

	h.write(resp, status, ErrorResponse{
		StatusCode: status,
		Timestamp:  timestamp,
		Path:       req.Request.URL.RequestURI(),
		Method:     req.Request.Method,
		Message:    message,
	})
}

func (h *ErrorHandler) write(resp *restful.Response, status int, body any) {
	if err := resp.WriteHeaderAndJson(status, body, restful.MIME_JSON); err != nil {
		h.logger.Warn("Failed to write error response", zap.Error(err))
	}
}

// ServiceErrorHandler renders router errors (unknown route, wrong method,
// unsupported media type) in the request fault shape.
func (h *ErrorHandler) ServiceErrorHandler(serviceErr restful.ServiceError, req *restful.Request, resp *restful.Response) {
	for header, values := range serviceErr.Header {
		for _, value := range values {
			resp.Header().Add(header, value)
		}
	}
	message := serviceErr.Message
	if message == "" {
		message = http.StatusText(serviceErr.Code)
	}
	h.WriteError(req, resp, apperror.New(serviceErr.Code, message, nil))
}

// RecoverHandler turns a panic in a route function into a 500 response.
func (h *ErrorHandler) RecoverHandler(panicReason any, w http.ResponseWriter) {
	h.logger.Error("Recovered from panic",
		zap.Any("reason", panicReason),
		zap.Stack("stack"),
	)
	w.Header().Set("Content-Type", restful.MIME_JSON)
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = fmt.Fprintf(w, `{"statusCode":%d,"timestamp":%q,"message":%q}`,
		http.StatusInternalServerError, h.now().UTC().Format(time.RFC3339Nano), http.StatusText(http.StatusInternalServerError))
}
