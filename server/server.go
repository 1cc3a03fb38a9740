package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"usercenter/auth"
	"usercenter/config"
	"usercenter/controllers"
	"usercenter/database"
	"usercenter/events"
	"usercenter/filters"
	"usercenter/repositories"
	"usercenter/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	HealthPath  = "/health"
	MetricsPath = "/metrics"
	APIDocsPath = "/apidocs.json"
)

// Options are the collaborators the HTTP API is assembled from.
type Options struct {
	Config    *config.Config
	DB        *gorm.DB
	Logger    *zap.Logger
	Publisher events.Publisher
	// Registry receives the HTTP and Go runtime collectors and backs /metrics.
	// A fresh registry is used when nil.
	Registry *prometheus.Registry
}

// New builds the go-restful container serving the API, /metrics and the OpenAPI document.
func New(opts Options) *restful.Container {
	cfg, logger := opts.Config, opts.Logger
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	// repositories and services
	userRepo := repositories.NewUserRepository(opts.DB)
	roleRepo := repositories.NewRoleRepository(opts.DB)
	logsRepo := repositories.NewLogsRepository(opts.DB)

	authenticator := auth.NewAuthenticator(cfg.JwtSecret, cfg.JwtTTL, cfg.ServiceName)
	userService := services.NewUserService(userRepo, roleRepo, publisher, logger)
	logsService := services.NewLogsService(logsRepo)
	rangeService := services.NewRangeService(cfg.Range.Max)
	authService := services.NewAuthService(userRepo, authenticator)

	errs := controllers.NewErrorHandler(logger)

	container := restful.NewContainer()
	container.Router(restful.CurlyRouter{})
	container.DoNotRecover(false)
	container.RecoverHandler(errs.RecoverHandler)
	container.ServiceErrorHandler(errs.ServiceErrorHandler)

	container.Filter(filters.RequestID())
	container.Filter(authenticator.IdentifyFilter())
	container.Filter(filters.AccessLog(logger))
	container.Filter(filters.NewMetrics(metricsNamespace(cfg.ServiceName), reg).Filter())
	if cfg.Audit.Enabled {
		container.Filter(filters.Audit(logsService, cfg.APIPrefix, logger))
	}

	prefix := strings.TrimSuffix(cfg.APIPrefix, "/")
	routes := []struct {
		path       string
		controller interface {
			RegisterRoutes(ws *restful.WebService, path string)
		}
	}{
		{"/user", controllers.NewUserController(userService, authenticator, errs)},
		{"/logs", controllers.NewLogsController(logsService, authenticator, errs)},
		{"/range", controllers.NewRangeController(rangeService, errs)},
		{"/auth", controllers.NewAuthController(authService, errs)},
	}
	for _, r := range routes {
		ws := new(restful.WebService)
		r.controller.RegisterRoutes(ws, prefix+r.path)
		container.Add(ws)
	}

	// outside the prefix so that health probes are not audited
	health := new(restful.WebService)
	controllers.NewHealthController(func(ctx context.Context) error {
		return database.Ping(ctx, opts.DB)
	}).RegisterRoutes(health, HealthPath)
	container.Add(health)

	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     APIDocsPath,
	}))
	container.Handle(MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	logger.Info("HTTP routes registered",
		zap.String("api_prefix", prefix),
		zap.Int("web_services", len(container.RegisteredWebServices())),
	)
	return container
}

// NewHTTPServer wraps handler in an http.Server listening on addr.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func metricsNamespace(serviceName string) string {
	return strings.NewReplacer("-", "_", ".", "_").Replace(serviceName)
}
