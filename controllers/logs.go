package controllers

import (
	"net/http"

	"usercenter/auth"
	"usercenter/models"
	"usercenter/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
)

type LogsController struct {
	logsService services.LogsService
	auth        *auth.Authenticator
	errors      *ErrorHandler
}

func NewLogsController(logsService services.LogsService, authenticator *auth.Authenticator, errors *ErrorHandler) *LogsController {
	return &LogsController{logsService: logsService, auth: authenticator, errors: errors}
}

func (ctl *LogsController) RegisterRoutes(ws *restful.WebService, path string) {
	ws.Path(path).Produces(restful.MIME_JSON)

	ws.Route(ws.GET("/logsByGroup").Filter(ctl.auth.OptionalAuthFilter(ctl.errors.WriteError)).To(ctl.logsByGroupHandler).
		Doc("Count a user's logs per result, ordered by result descending").
		Param(ws.QueryParameter("id", "User id, defaults to the caller").DataType("integer")).
		Param(ws.HeaderParameter("Authorization", "Bearer token").DataType("string")).
		Metadata(restfulspec.KeyOpenAPITags, []string{"logs"}).
		Writes([]models.ResultCount{}).
		Returns(http.StatusOK, "OK", []models.ResultCount{}).
		Returns(http.StatusBadRequest, "No user id given", ErrorResponse{}))
}

// logsByGroupHandler (Handles GET /logs/logsByGroup)
func (ctl *LogsController) logsByGroupHandler(request *restful.Request, response *restful.Response) {
	id, err := subjectID(request)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}

	rows, err := ctl.logsService.LogsGroupedByResult(request.Request.Context(), id)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}
	if rows == nil {
		rows = []models.ResultCount{}
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, rows, restful.MIME_JSON)
}
