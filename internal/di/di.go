// Package di provides a minimal string-token dependency injection
// container. Modules register lazy factories under typed tokens; the
// first Get resolves the factory and memoizes the instance.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read surface of the container.
type ServiceRegistry interface {
	// Get returns the service registered under name, resolving its
	// factory on first use. Panics if the name is unknown.
	Get(name string) any
}

// Container is the write surface handed to modules at registration.
type Container interface {
	ServiceRegistry
	// Register stores an already-built service instance.
	Register(name string, service any)
	// RegisterFactory stores a lazy constructor for a service.
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

type container struct {
	mu        sync.Mutex
	services  map[string]any
	factories map[string]func(ServiceRegistry) any
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		services:  make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
	}
}

func (c *container) Register(name string, service any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

func (c *container) Get(name string) any {
	c.mu.Lock()
	if svc, ok := c.services[name]; ok {
		c.mu.Unlock()
		return svc
	}

	factory, ok := c.factories[name]
	if !ok {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: unknown service %q", name))
	}

	// Release the lock while the factory runs so it can resolve its
	// own dependencies through Get.
	c.mu.Unlock()
	svc := factory(c)

	c.mu.Lock()
	c.services[name] = svc
	c.mu.Unlock()

	return svc
}

// Token is a typed service name.
type Token[T any] struct {
	name string
}

// NewToken creates a token for a service of type T.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the token's registry name.
func (t Token[T]) Name() string {
	return t.name
}

// RegisterToken registers a typed factory under the token's name.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves a token to its typed service.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	svc, ok := sr.Get(token.name).(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type", token.name))
	}
	return svc
}
