package controllers

import (
	"strconv"

	"usercenter/apperror"
	"usercenter/auth"

	restful "github.com/emicklei/go-restful/v3"
)

// pathID parses the {id} path parameter.
func pathID(req *restful.Request) (uint, error) {
	return parseID("id", req.PathParameter("id"))
}

func parseID(name, raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, apperror.BadRequest("%s must be a positive integer", name)
	}
	return uint(id), nil
}

// optionalUint returns nil when the query parameter is absent.
func optionalUint(req *restful.Request, name string) (*uint, error) {
	raw := req.QueryParameter(name)
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(name, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalInt(req *restful.Request, name string) (*int, error) {
	raw := req.QueryParameter(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperror.BadRequest("%s must be an integer", name)
	}
	return &v, nil
}

// positiveInt reads a 1-based query parameter, falling back to def when absent.
func positiveInt(req *restful.Request, name string, def, max int) (int, error) {
	raw := req.QueryParameter(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, apperror.BadRequest("%s must be a positive integer", name)
	}
	if max > 0 && v > max {
		return 0, apperror.BadRequest("%s must be at most %d", name, max)
	}
	return v, nil
}

// subjectID picks the user a self-service query is about: the id query
// parameter when given, otherwise the authenticated caller.
func subjectID(req *restful.Request) (uint, error) {
	id, err := optionalUint(req, "id")
	if err != nil {
		return 0, err
	}
	if id != nil {
		return *id, nil
	}
	if caller, ok := auth.CallerID(req); ok {
		return caller, nil
	}
	return 0, apperror.BadRequest("id is required when no bearer token is sent")
}
