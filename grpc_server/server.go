package grpcserver

import (
	"context"

	"usercenter/interceptors"
	"usercenter/services"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Server is the gRPC endpoint of the service: the user service, the standard
// health service and reflection.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// New creates the gRPC server with logging, panic recovery and bearer token
// interceptors. User service calls need a token; health and reflection do not.
func New(validator interceptors.TokenValidator, users services.UserService, logger *zap.Logger) *Server {
	logger = logger.Named("grpc")

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.ZapLoggingInterceptor(logger),
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(func(ctx context.Context, p any) error {
				logger.Error("Recovered from panic in gRPC handler", zap.Any("reason", p), zap.Stack("stack"))
				return status.Error(codes.Internal, "internal error")
			})),
			interceptors.AuthInterceptor(validator, healthpb.Health_Check_FullMethodName),
		),
		grpc.ChainStreamInterceptor(
			interceptors.ZapStreamLoggingInterceptor(logger),
		),
	)

	grpcServer.RegisterService(&UserServiceDesc, NewUserServiceServer(users))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	return &Server{Server: grpcServer, Health: healthServer}
}
