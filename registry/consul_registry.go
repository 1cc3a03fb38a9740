package registry

import (
	"fmt"
	"strings"

	"usercenter/config"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

type consulRegistry struct {
	agent  *consulapi.Agent
	logger *zap.SugaredLogger
}

var _ ServiceRegistry = (*consulRegistry)(nil)

// NewConsulRegistry talks to the local Consul agent at cfg.Address and asks
// it for its node name, so an unreachable agent is reported at startup.
func NewConsulRegistry(cfg config.ConsulConfig, logger *zap.SugaredLogger) (ServiceRegistry, error) {
	clientCfg := consulapi.DefaultConfig()
	if cfg.Address != "" {
		clientCfg.Address = cfg.Address
	}

	client, err := consulapi.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client for %s: %w", clientCfg.Address, err)
	}

	agent := client.Agent()
	node, err := agent.NodeName()
	if err != nil {
		return nil, fmt.Errorf("cannot connect to consul agent at %s: %w", clientCfg.Address, err)
	}

	logger = logger.Named("consul")
	logger.Infow("Consul agent reachable", "address", clientCfg.Address, "node", node)
	return &consulRegistry{agent: agent, logger: logger}, nil
}

func (r *consulRegistry) Register(id, name, address string, port int, tags []string, check *consulapi.AgentServiceCheck) error {
	err := r.agent.ServiceRegister(&consulapi.AgentServiceRegistration{
		ID:      id,
		Name:    name,
		Tags:    tags,
		Port:    port,
		Address: address,
		Check:   check,
		Meta:    map[string]string{"protocol": protocolOf(check)},
	})
	if err != nil {
		return fmt.Errorf("register %s (%s): %w", name, id, err)
	}
	r.logger.Infow("Registered", "service_id", id, "service_name", name, "address", address, "port", port)
	return nil
}

func (r *consulRegistry) Deregister(id string) error {
	if err := r.agent.ServiceDeregister(id); err != nil {
		return fmt.Errorf("deregister %s: %w", id, err)
	}
	r.logger.Infow("Deregistered", "service_id", id)
	return nil
}

func protocolOf(check *consulapi.AgentServiceCheck) string {
	switch {
	case check == nil:
		return "unknown"
	case check.GRPC != "":
		return "grpc"
	default:
		return "http"
	}
}

// CreateHTTPCheck has the agent GET http://host:port/path every interval.
// interval and timeout use Go duration syntax, e.g. "10s".
func CreateHTTPCheck(serviceID, host string, port int, path string, interval, timeout string) *consulapi.AgentServiceCheck {
	return &consulapi.AgentServiceCheck{
		CheckID:                        "check_" + serviceID + "_http",
		Name:                           "HTTP health of " + serviceID,
		HTTP:                           fmt.Sprintf("http://%s:%d/%s", host, port, strings.TrimPrefix(path, "/")),
		Method:                         "GET",
		Interval:                       interval,
		Timeout:                        timeout,
		DeregisterCriticalServiceAfter: "1m",
	}
}

// CreateGRPCSCheck has the agent call grpc.health.v1.Health/Check on target,
// written as host:port or host:port/service.
func CreateGRPCSCheck(serviceID, target string, interval, timeout string, useTLS bool) *consulapi.AgentServiceCheck {
	return &consulapi.AgentServiceCheck{
		CheckID:                        "check_" + serviceID + "_grpc",
		Name:                           "gRPC health of " + serviceID,
		GRPC:                           target,
		GRPCUseTLS:                     useTLS,
		Interval:                       interval,
		Timeout:                        timeout,
		DeregisterCriticalServiceAfter: "1m",
	}
}
