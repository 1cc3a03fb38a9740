package filters

import (
	"context"
	"strconv"
	"strings"
	"time"

	"usercenter/auth"
	"usercenter/models"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-Id"
	AttrRequestID   = "request_id"
)

// RequestID tags every request with an id, reusing the caller's X-Request-Id when present.
func RequestID() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		id := req.HeaderParameter(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		req.SetAttribute(AttrRequestID, id)
		resp.AddHeader(HeaderRequestID, id)
		chain.ProcessFilter(req, resp)
	}
}

func requestID(req *restful.Request) string {
	id, _ := req.Attribute(AttrRequestID).(string)
	return id
}

// AccessLog logs one line per request once it has been handled.
func AccessLog(logger *zap.Logger) restful.FilterFunction {
	logger = logger.Named("http")
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		startTime := time.Now()

		chain.ProcessFilter(req, resp)

		logger.Info("Request",
			zap.String("client_ip", clientIP(req)),
			zap.String("method", req.Request.Method),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("latency", time.Since(startTime)),
			zap.String("user_agent", req.Request.UserAgent()),
			zap.String("path", req.Request.URL.Path),
			zap.String("request_id", requestID(req)),
		)
	}
}

func clientIP(req *restful.Request) string {
	if fwd := req.HeaderParameter("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := req.Request.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

// Recorder persists one logs row per audited request.
type Recorder interface {
	Record(ctx context.Context, entry *models.Logs) error
}

// Audit records every request under prefix as a logs row: the path, the
// method, the raw query as data, the status code as result and the caller, if known.
func Audit(recorder Recorder, prefix string, logger *zap.Logger) restful.FilterFunction {
	logger = logger.Named("audit")
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		chain.ProcessFilter(req, resp)

		if !strings.HasPrefix(req.Request.URL.Path, prefix) {
			return
		}
		entry := &models.Logs{
			Path:   req.Request.URL.Path,
			Method: req.Request.Method,
			Data:   req.Request.URL.RawQuery,
			Result: strconv.Itoa(resp.StatusCode()),
		}
		if caller, ok := auth.CallerID(req); ok {
			entry.UserID = &caller
		}

		// the client may already be gone; the row is still written
		ctx := context.WithoutCancel(req.Request.Context())
		if err := recorder.Record(ctx, entry); err != nil {
			logger.Warn("Failed to record request",
				zap.String("path", entry.Path),
				zap.String("request_id", requestID(req)),
				zap.Error(err),
			)
		}
	}
}
