package controllers

import (
	"net/http"

	"usercenter/apperror"
	"usercenter/services"
	"usercenter/validation"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
)

type AuthController struct {
	authService services.AuthService
	errors      *ErrorHandler
}

func NewAuthController(authService services.AuthService, errors *ErrorHandler) *AuthController {
	return &AuthController{authService: authService, errors: errors}
}

func (ctl *AuthController) RegisterRoutes(ws *restful.WebService, path string) {
	ws.Path(path).Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)

	ws.Route(ws.POST("/login").To(ctl.loginHandler).
		Doc("Exchange credentials for a bearer token").
		Metadata(restfulspec.KeyOpenAPITags, []string{"auth"}).
		Reads(services.LoginInput{}).
		Writes(services.LoginResponse{}).
		Returns(http.StatusOK, "Logged in", services.LoginResponse{}).
		Returns(http.StatusBadRequest, "Invalid request body", ErrorResponse{}).
		Returns(http.StatusUnauthorized, "Invalid credentials", ErrorResponse{}))
}

// loginHandler (Handles POST /auth/login)
func (ctl *AuthController) loginHandler(request *restful.Request, response *restful.Response) {
	creds := new(services.LoginInput)
	if err := request.ReadEntity(creds); err != nil {
		ctl.errors.WriteError(request, response, apperror.BadRequest("invalid request body: %v", err))
		return
	}
	if err := validation.Struct(creds); err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}

	res, err := ctl.authService.Login(request.Request.Context(), creds)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, res, restful.MIME_JSON)
}
