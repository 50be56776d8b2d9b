// Package provider defines the narrow capability the watcher needs from a
// court-booking platform, and a registry of available implementations.
package provider

import (
	"context"
	"sort"

	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/model"
)

// RawSlot is one upstream slot before reconciliation. Date and StartTime are
// in UTC as reported by the platform.
type RawSlot struct {
	ResourceRef string
	Date        string
	StartTime   string
	Duration    int
	Price       string
}

// CourtMeta describes one court of a club.
type CourtMeta struct {
	Name        string
	ResourceRef string
	Sport       string
	Features    []string
}

// ClubInfo is the club metadata behind a public slug.
type ClubInfo struct {
	TenantRef    string
	Name         string
	Address      string
	Timezone     string
	OpeningHours map[string]model.OpeningHours
	SportIDs     []string
	Courts       []CourtMeta
}

// Provider is implemented by each supported booking platform.
type Provider interface {
	Name() string
	// FetchAvailability returns every slot the platform offers for a club on date.
	FetchAvailability(ctx context.Context, tenantRef, date, sport string) ([]RawSlot, error)
	// FetchClubInfo resolves a slug. It returns nil, nil when the club does not exist.
	FetchClubInfo(ctx context.Context, slug string) (*ClubInfo, error)
	// BookingURL deep-links into the booking flow for a slot starting at
	// date/startUTC. It reports false when a link cannot be built.
	BookingURL(tenantRef, resourceRef, date, startUTC string, durationMinutes int) (string, bool)
}

// Registry looks providers up by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, errs.NotFoundf("provider %q is not registered", name)
	}
	return p, nil
}

// Names lists registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
