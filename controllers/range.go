package controllers

import (
	"net/http"

	"usercenter/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
)

type RangeController struct {
	rangeService *services.RangeService
	errors       *ErrorHandler
}

func NewRangeController(rangeService *services.RangeService, errors *ErrorHandler) *RangeController {
	return &RangeController{rangeService: rangeService, errors: errors}
}

func (ctl *RangeController) RegisterRoutes(ws *restful.WebService, path string) {
	ws.Path(path).Produces(restful.MIME_JSON)

	ws.Route(ws.GET("").To(ctl.rangeHandler).
		Doc("List the numbers 1..num as strings").
		Param(ws.QueryParameter("num", "Upper bound, a positive integer").DataType("integer").Required(true)).
		Metadata(restfulspec.KeyOpenAPITags, []string{"range"}).
		Writes(services.RangeResponse{}).
		Returns(http.StatusOK, "OK", services.RangeResponse{}).
		Returns(http.StatusBadRequest, "num missing or not a valid number", ErrorResponse{}))
}

// rangeHandler (Handles GET /range)
func (ctl *RangeController) rangeHandler(request *restful.Request, response *restful.Response) {
	res, err := ctl.rangeService.Range(request.QueryParameter("num"))
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, res, restful.MIME_JSON)
}
