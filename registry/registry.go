package registry

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

// ServiceRegistry announces the running endpoints of this process.
type ServiceRegistry interface {
	Register(id, name, address string, port int, tags []string, check *consulapi.AgentServiceCheck) error
	Deregister(id string) error
}

// ServiceID builds the instance id used for registration, e.g. "user-center-http-10.0.0.4-3000".
func ServiceID(name, host string, port int) string {
	return fmt.Sprintf("%s-%s-%d", name, host, port)
}
