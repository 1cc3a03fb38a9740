package grpcserver

import (
	"context"
	"errors"

	"usercenter/apperror"
	"usercenter/interceptors"
	"usercenter/models"
	"usercenter/services"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	UserServiceName                    = "usercenter.v1.UserService"
	UserService_GetUser_FullMethodName = "/" + UserServiceName + "/GetUser"
	UserService_WhoAmI_FullMethodName  = "/" + UserServiceName + "/WhoAmI"
)

// userServiceServer exposes user lookups over gRPC. Messages are protobuf
// well-known types, so no generated code is needed.
type userServiceServer struct {
	userService services.UserService
}

// UserServiceServer is the handler type of UserServiceDesc.
type UserServiceServer interface {
	GetUser(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error)
	WhoAmI(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// NewUserServiceServer creates a new gRPC user service server.
func NewUserServiceServer(us services.UserService) UserServiceServer {
	return &userServiceServer{userService: us}
}

// GetUser returns the user with the given id, with profile and roles.
func (s *userServiceServer) GetUser(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	if req.GetValue() == 0 {
		return nil, status.Error(codes.InvalidArgument, "user id must be positive")
	}
	user, err := s.userService.GetUser(ctx, uint(req.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return userToStruct(user)
}

// WhoAmI returns the user the bearer token was issued to.
func (s *userServiceServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	id, ok := interceptors.GetUserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no caller in context")
	}
	user, err := s.userService.GetUser(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		name, _ := interceptors.GetUsernameFromContext(ctx)
		return nil, status.Errorf(codes.NotFound, "user %q no longer exists", name)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return userToStruct(user)
}

func userToStruct(u *models.User) (*structpb.Struct, error) {
	roles := make([]any, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, map[string]any{"id": r.ID, "name": r.Name})
	}
	fields := map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"roles":    roles,
	}
	if u.Profile != nil {
		fields["profile"] = map[string]any{
			"id":      u.Profile.ID,
			"gender":  u.Profile.Gender,
			"photo":   u.Profile.Photo,
			"address": u.Profile.Address,
		}
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding user: %v", err)
	}
	return st, nil
}

// toStatus maps domain faults onto gRPC codes. Anything unrecognised is Internal.
func toStatus(err error) error {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, apperror.ErrBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, apperror.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, apperror.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func _UserService_GetUser_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceServer).GetUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: UserService_GetUser_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(UserServiceServer).GetUser(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func _UserService_WhoAmI_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: UserService_WhoAmI_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(UserServiceServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// UserServiceDesc describes usercenter.v1.UserService for grpc.Server.RegisterService.
var UserServiceDesc = grpc.ServiceDesc{
	ServiceName: UserServiceName,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetUser", Handler: _UserService_GetUser_Handler},
		{MethodName: "WhoAmI", Handler: _UserService_WhoAmI_Handler},
	},
	Streams: []grpc.StreamDesc{},
}
