package testutil

import (
	"context"
	"fmt"
	"sync"

	"court-watch-backend/internal/provider"
)

// FakeProvider serves canned availability and club data keyed by tenant ref
// and slug, and counts availability calls.
type FakeProvider struct {
	ProviderName string

	mu    sync.Mutex
	slots map[string][]provider.RawSlot
	errs  map[string]error
	clubs map[string]*provider.ClubInfo
	calls map[string]int
}

func NewFakeProvider(name string) *FakeProvider {
	return &FakeProvider{
		ProviderName: name,
		slots:        make(map[string][]provider.RawSlot),
		errs:         make(map[string]error),
		clubs:        make(map[string]*provider.ClubInfo),
		calls:        make(map[string]int),
	}
}

func (f *FakeProvider) SetSlots(tenantRef string, slots ...provider.RawSlot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[tenantRef] = slots
}

func (f *FakeProvider) SetError(tenantRef string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[tenantRef] = err
}

func (f *FakeProvider) SetClub(slug string, info *provider.ClubInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clubs[slug] = info
}

// Calls returns how often availability was fetched for tenantRef.
func (f *FakeProvider) Calls(tenantRef string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tenantRef]
}

func (f *FakeProvider) Name() string { return f.ProviderName }

func (f *FakeProvider) FetchAvailability(_ context.Context, tenantRef, _, _ string) ([]provider.RawSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[tenantRef]++
	if err := f.errs[tenantRef]; err != nil {
		return nil, err
	}
	return append([]provider.RawSlot(nil), f.slots[tenantRef]...), nil
}

func (f *FakeProvider) FetchClubInfo(_ context.Context, slug string) (*provider.ClubInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clubs[slug], nil
}

func (f *FakeProvider) BookingURL(tenantRef, resourceRef, date, startUTC string, durationMinutes int) (string, bool) {
	if tenantRef == "" || resourceRef == "" {
		return "", false
	}
	return fmt.Sprintf("https://book.test/%s/%s?start=%sT%s&duration=%d", tenantRef, resourceRef, date, startUTC, durationMinutes), true
}
