package servicediscover

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"rewards-controlplane/pkg/config"

	"github.com/hashicorp/consul/api"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("servicediscover", fx.Invoke(registerConsul))

type ServiceRegistry interface {
	Register(ctx context.Context) error
	Deregister(ctx context.Context) error
}

type ConsulRegistry struct {
	client    *api.Client
	serviceID string
	service   *api.AgentServiceRegistration
}

func NewConsulRegistry(address, serviceName, serviceID, host string, port int) (*ConsulRegistry, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &ConsulRegistry{
		client:    client,
		serviceID: serviceID,
		service:   Registration(serviceName, serviceID, host, port),
	}, nil
}

// Registration describes the service with an HTTP readiness check.
func Registration(serviceName, serviceID, host string, port int) *api.AgentServiceRegistration {
	return &api.AgentServiceRegistration{
		ID:      serviceID,
		Name:    serviceName,
		Address: host,
		Port:    port,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%d/health/readiness", host, port),
			Interval: "10s",
			Timeout:  "5s",
		},
	}
}

func (r *ConsulRegistry) Register(ctx context.Context) error {
	return r.client.Agent().ServiceRegister(r.service)
}

func (r *ConsulRegistry) Deregister(ctx context.Context) error {
	return r.client.Agent().ServiceDeregister(r.serviceID)
}

func registerConsul(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.Consul.Addr == "" {
		return nil
	}

	host := cfg.Consul.Host
	if host == "" {
		host, _ = os.Hostname()
	}
	serviceID := cfg.Consul.ServiceID
	if serviceID == "" {
		serviceID = fmt.Sprintf("%s-%s", cfg.AppName, host)
	}

	port, err := strconv.Atoi(strings.TrimPrefix(cfg.Server.Addr, ":"))
	if err != nil {
		return fmt.Errorf("invalid HTTP_SERVER.ADDR %q: %w", cfg.Server.Addr, err)
	}

	var registry ServiceRegistry
	registry, err = NewConsulRegistry(cfg.Consul.Addr, cfg.AppName, serviceID, host, port)
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := registry.Register(ctx); err != nil {
				zap.L().Error("consul registration failed", zap.Error(err))
				return err
			}
			zap.L().Info("registered with consul", zap.String("service_id", serviceID))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return registry.Deregister(ctx)
		},
	})
	return nil
}
