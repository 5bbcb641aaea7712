// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"github.com/dexarb/solarb/internal/config"
	"github.com/dexarb/solarb/internal/di"
	"github.com/dexarb/solarb/internal/httpclient"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/token"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	RPCHTTPClient() httpclient.Client
	TokenRegistry() *token.Registry
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	rpcHTTP       httpclient.Client
	tokenRegistry *token.Registry
	container     di.Container
}

// New creates a new Monolith instance.
func New(cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	// Shared instrumented HTTP client pointed at the RPC node
	rpcHTTP, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(cfg.Chain.RPCURL),
		httpclient.WithProviderName("rpc"),
		httpclient.WithRequestTimeout(cfg.Chain.RequestTimeout),
	)
	if err != nil {
		return nil, err
	}

	// Token registry pre-populated with common tokens
	tokenRegistry := token.WellKnown()

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("rpcHTTPClient", rpcHTTP)
	container.Register("tokenRegistry", tokenRegistry)

	return &app{
		config:        cfg,
		logger:        log,
		rpcHTTP:       rpcHTTP,
		tokenRegistry: tokenRegistry,
		container:     container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) RPCHTTPClient() httpclient.Client {
	return a.rpcHTTP
}

func (a *app) TokenRegistry() *token.Registry {
	return a.tokenRegistry
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
