package controllers

import (
	"context"
	"net/http"

	"usercenter/apperror"
	"usercenter/auth"
	"usercenter/models"
	"usercenter/repositories"
	"usercenter/services"
	"usercenter/validation"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

type UserController struct {
	userService services.UserService
	auth        *auth.Authenticator
	errors      *ErrorHandler
}

func NewUserController(userService services.UserService, authenticator *auth.Authenticator, errors *ErrorHandler) *UserController {
	return &UserController{userService: userService, auth: authenticator, errors: errors}
}

// RegisterRoutes sets up the user routes on ws, rooted at path.
func (ctl *UserController) RegisterRoutes(ws *restful.WebService, path string) {
	ws.Path(path).Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	tags := []string{"users"}
	identify := ctl.auth.OptionalAuthFilter(ctl.errors.WriteError)

	ws.Route(ws.GET("").To(ctl.listUsersHandler).
		Doc("List users").
		Param(ws.QueryParameter("page", "Page number, 1-based").DataType("integer").DefaultValue("1")).
		Param(ws.QueryParameter("limit", "Users per page").DataType("integer").DefaultValue("10")).
		Param(ws.QueryParameter("username", "Exact username").DataType("string")).
		Param(ws.QueryParameter("roleId", "Only users holding this role").DataType("integer")).
		Param(ws.QueryParameter("gender", "Only users whose profile has this gender").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes([]models.User{}).
		Returns(http.StatusOK, "OK", []models.User{}).
		Returns(http.StatusBadRequest, "Invalid query parameter", ErrorResponse{}))

	ws.Route(ws.POST("").To(ctl.createUserHandler).
		Doc("Create a user").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.CreateUserInput{}).
		Returns(http.StatusCreated, "User created", models.User{}).
		Returns(http.StatusBadRequest, "Invalid request body", ErrorResponse{}).
		Returns(http.StatusInternalServerError, "Database error", PersistenceErrorResponse{}))

	ws.Route(ws.GET("/logs").Filter(identify).To(ctl.getUserLogsHandler).
		Doc("Get a user with its logs").
		Param(ws.QueryParameter("id", "User id, defaults to the caller").DataType("integer")).
		Param(ws.HeaderParameter("Authorization", "Bearer token").DataType("string")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(models.User{}).
		Returns(http.StatusOK, "OK", models.User{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))

	ws.Route(ws.GET("/profile").Filter(identify).To(ctl.getUserProfileHandler).
		Doc("Get a user with its profile").
		Param(ws.QueryParameter("id", "User id, defaults to the caller").DataType("integer")).
		Param(ws.HeaderParameter("Authorization", "Bearer token").DataType("string")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(models.User{}).
		Returns(http.StatusOK, "OK", models.User{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))

	ws.Route(ws.GET("/{id}").To(ctl.getUserHandler).
		Doc("Get a user with profile and roles").
		Param(ws.PathParameter("id", "Identifier of the user").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(models.User{}).
		Returns(http.StatusOK, "OK", models.User{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))

	ws.Route(ws.PATCH("/{id}").Filter(ctl.auth.AuthFilter(ctl.errors.WriteError)).To(ctl.updateUserHandler).
		Doc("Update a user; omitted fields keep their value").
		Param(ws.PathParameter("id", "Identifier of the user to update").DataType("integer")).
		Param(ws.HeaderParameter("Authorization", "Bearer token of the same user").DataType("string").Required(true)).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.UpdateUserInput{}).
		Writes(models.User{}).
		Returns(http.StatusOK, "User updated", models.User{}).
		Returns(http.StatusBadRequest, "Invalid request body or user id", ErrorResponse{}).
		Returns(http.StatusUnauthorized, "Caller is not this user", ErrorResponse{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))

	ws.Route(ws.DELETE("/{id}").To(ctl.removeUserHandler).
		Doc("Delete a user").
		Param(ws.PathParameter("id", "Identifier of the user to delete").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(models.User{}).
		Returns(http.StatusOK, "Removed user", models.User{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))
}

// listUsersHandler (Handles GET /user)
func (ctl *UserController) listUsersHandler(request *restful.Request, response *restful.Response) {
	query, err := userQuery(request)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}

	users, err := ctl.userService.ListUsers(request.Request.Context(), query)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, users, restful.MIME_JSON)
}

func userQuery(request *restful.Request) (repositories.UserQuery, error) {
	var (
		q   repositories.UserQuery
		err error
	)
	if q.Page, err = positiveInt(request, "page", defaultPage, 0); err != nil {
		return q, err
	}
	if q.Limit, err = positiveInt(request, "limit", defaultLimit, maxLimit); err != nil {
		return q, err
	}
	if username := request.QueryParameter("username"); username != "" {
		q.Username = &username
	}
	if q.RoleID, err = optionalUint(request, "roleId"); err != nil {
		return q, err
	}
	if q.Gender, err = optionalInt(request, "gender"); err != nil {
		return q, err
	}
	return q, nil
}

// createUserHandler (Handles POST /user)
func (ctl *UserController) createUserHandler(request *restful.Request, response *restful.Response) {
	input := new(services.CreateUserInput)
	if err := request.ReadEntity(input); err != nil {
		ctl.errors.WriteError(request, response, apperror.BadRequest("invalid request body: %v", err))
		return
	}
	if err := validation.Struct(input); err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}

	user, err := ctl.userService.CreateUser(request.Request.Context(), input)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusCreated, user, restful.MIME_JSON)
}

// getUserLogsHandler (Handles GET /user/logs)
func (ctl *UserController) getUserLogsHandler(request *restful.Request, response *restful.Response) {
	ctl.writeSubject(request, response, ctl.userService.GetUserWithLogs)
}

// getUserProfileHandler (Handles GET /user/profile)
func (ctl *UserController) getUserProfileHandler(request *restful.Request, response *restful.Response) {
	ctl.writeSubject(request, response, ctl.userService.GetUserWithProfile)
}

func (ctl *UserController) writeSubject(request *restful.Request, response *restful.Response, load userLoader) {
	id, err := subjectID(request)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}
	ctl.writeUser(request, response, id, load)
}

// getUserHandler (Handles GET /user/{id})
func (ctl *UserController) getUserHandler(request *restful.Request, response *restful.Response) {
	id, err := pathID(request)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}
	ctl.writeUser(request, response, id, ctl.userService.GetUser)
}

// updateUserHandler (Handles PATCH /user/{id})
func (ctl *UserController) updateUserHandler(request *restful.Request, response *restful.Response) {
	id, err := pathID(request)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}
	if caller, ok := auth.CallerID(request); !ok || caller != id {
		ctl.errors.WriteError(request, response, apperror.Unauthorized("you can only update your own account"))
		return
	}

	input := new(services.UpdateUserInput)
	if err := request.ReadEntity(input); err != nil {
		ctl.errors.WriteError(request, response, apperror.BadRequest("invalid request body: %v", err))
		return
	}
	if err := validation.Struct(input); err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}

	user, err := ctl.userService.UpdateUser(request.Request.Context(), id, input)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, user, restful.MIME_JSON)
}

// removeUserHandler (Handles DELETE /user/{id})
func (ctl *UserController) removeUserHandler(request *restful.Request, response *restful.Response) {
	id, err := pathID(request)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}
	ctl.writeUser(request, response, id, ctl.userService.RemoveUser)
}

type userLoader func(ctx context.Context, id uint) (*models.User, error)

func (ctl *UserController) writeUser(request *restful.Request, response *restful.Response, id uint, load userLoader) {
	user, err := load(request.Request.Context(), id)
	if err != nil {
		ctl.errors.WriteError(request, response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, user, restful.MIME_JSON)
}
