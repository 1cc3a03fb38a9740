package controllers

import (
	"context"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

type HealthController struct {
	ping    Pinger
	timeout time.Duration
}

func NewHealthController(ping Pinger) *HealthController {
	return &HealthController{ping: ping, timeout: 2 * time.Second}
}

func (ctl *HealthController) RegisterRoutes(ws *restful.WebService, path string) {
	ws.Path(path).Produces(restful.MIME_JSON)

	ws.Route(ws.GET("").To(ctl.healthHandler).
		Doc("Report service and database health").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthResponse{}).
		Returns(http.StatusOK, "Healthy", HealthResponse{}).
		Returns(http.StatusServiceUnavailable, "Database unreachable", HealthResponse{}))
}

func (ctl *HealthController) healthHandler(request *restful.Request, response *restful.Response) {
	ctx, cancel := context.WithTimeout(request.Request.Context(), ctl.timeout)
	defer cancel()

	if err := ctl.ping(ctx); err != nil {
		_ = response.WriteHeaderAndJson(http.StatusServiceUnavailable, HealthResponse{Status: "error", Database: err.Error()}, restful.MIME_JSON)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, HealthResponse{Status: "ok", Database: "up"}, restful.MIME_JSON)
}
