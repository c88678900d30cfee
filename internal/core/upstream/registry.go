// Package upstream holds the static registry of upstream GraphQL services and
// the HTTP client used to call them.
package upstream

import (
	"fmt"
	"net/url"
	"time"

	"github.com/xzzpig/graph-gateway/internal/core/errs"
)

// Service is one upstream GraphQL endpoint and the root fields it resolves.
type Service struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	RootFields []string `json:"rootFields"`
}

// Registry maps service names and root fields to services. It is immutable.
type Registry struct {
	services []Service
	byName   map[string]int
	owners   map[string]int
}

// NewRegistry validates services and indexes them.
func NewRegistry(services []Service) (*Registry, error) {
	r := &Registry{
		services: make([]Service, 0, len(services)),
		byName:   make(map[string]int, len(services)),
		owners:   make(map[string]int),
	}
	for _, svc := range services {
		if svc.Name == "" {
			return nil, fmt.Errorf("%w: upstream service without a name", errs.ErrInvalidInput)
		}
		if _, dup := r.byName[svc.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate upstream service %q", errs.ErrInvalidInput, svc.Name)
		}
		u, err := url.Parse(svc.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: upstream %q has invalid url %q", errs.ErrInvalidInput, svc.Name, svc.URL)
		}

		idx := len(r.services)
		for _, field := range svc.RootFields {
			if other, taken := r.owners[field]; taken {
				return nil, fmt.Errorf("%w: root field %q is claimed by both %q and %q",
					errs.ErrInvalidInput, field, r.services[other].Name, svc.Name)
			}
			r.owners[field] = idx
		}

		svc.RootFields = append([]string(nil), svc.RootFields...)
		r.services = append(r.services, svc)
		r.byName[svc.Name] = idx
	}
	return r, nil
}

// Services returns the services in configuration order.
func (r *Registry) Services() []Service {
	out := make([]Service, len(r.services))
	copy(out, r.services)
	return out
}

// Lookup finds a service by name.
func (r *Registry) Lookup(name string) (Service, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return Service{}, false
	}
	return r.services[idx], true
}

// OwnerOf returns the service resolving a root field.
func (r *Registry) OwnerOf(field string) (Service, bool) {
	idx, ok := r.owners[field]
	if !ok {
		return Service{}, false
	}
	return r.services[idx], true
}

// Health states reported by Status.
const (
	StateUnknown = "unknown"
	StateUp      = "up"
	StateDown    = "down"
)

// Status is the last health probe result of a service.
type Status struct {
	Service   string    `json:"service"`
	URL       string    `json:"url"`
	State     string    `json:"state"`
	CheckedAt time.Time `json:"checkedAt,omitzero"`
	Error     string    `json:"error,omitempty"`
}
