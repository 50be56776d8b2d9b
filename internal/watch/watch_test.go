package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/store"
	"court-watch-backend/internal/testutil"
)

func newService(t *testing.T) (*Service, []int64) {
	t.Helper()
	ctx := context.Background()
	st := store.NewGormStore(testutil.NewDB(t))
	var ids []int64
	for _, tenant := range []string{"a", "b"} {
		loc := &model.Location{Provider: "fake", TenantRef: tenant, Name: "Club " + tenant, Slug: "club-" + tenant}
		require.NoError(t, st.UpsertLocation(ctx, loc))
		ids = append(ids, loc.ID)
	}
	tz, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	s := NewService(st, tz, zaptest.NewLogger(t).Sugar())
	s.now = func() time.Time { return time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC) }
	return s, ids
}

func TestService_CreateResolvesAllLocations(t *testing.T) {
	s, ids := newService(t)

	search, err := s.Create(context.Background(), "u1", Input{Date: "2025-11-20", StartTime: "18:00", EndTime: "21:00"})
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, search.LocationIDs)
	assert.Equal(t, 90, search.DurationMinutes)
	assert.Equal(t, "all", search.CourtType)
	assert.True(t, search.Active)
}

func TestService_CreateRequiresLocations(t *testing.T) {
	ctx := context.Background()
	st := store.NewGormStore(testutil.NewDB(t))
	s := NewService(st, time.UTC, zaptest.NewLogger(t).Sugar())
	s.now = func() time.Time { return time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC) }
	in := Input{Date: "2025-11-20", StartTime: "18:00", EndTime: "21:00"}

	_, err := s.Create(ctx, "u1", in)
	assert.True(t, errs.Is(err, errs.ErrInvalid))
	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)

	first := &model.Location{Provider: "fake", TenantRef: "a", Name: "Club a", Slug: "club-a"}
	require.NoError(t, st.UpsertLocation(ctx, first))
	search, err := s.Create(ctx, "u1", in)
	require.NoError(t, err)

	// A club added later is not watched by the existing search.
	late := &model.Location{Provider: "fake", TenantRef: "b", Name: "Late Club", Slug: "late-club"}
	require.NoError(t, st.UpsertLocation(ctx, late))
	got, err := s.Get(ctx, "u1", search.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{first.ID}, got.LocationIDs)
}

func TestService_CreateValidates(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	for name, in := range map[string]Input{
		"past date":        {Date: "2025-11-19", StartTime: "18:00", EndTime: "21:00"},
		"inverted window":  {Date: "2025-11-20", StartTime: "21:00", EndTime: "18:00"},
		"unknown location": {Date: "2025-11-20", StartTime: "18:00", EndTime: "21:00", LocationIDs: []int64{999}},
		"bad court type":   {Date: "2025-11-20", StartTime: "18:00", EndTime: "21:00", CourtType: "grass"},
	} {
		_, err := s.Create(ctx, "u1", in)
		assert.True(t, errs.Is(err, errs.ErrInvalid), "%s: %v", name, err)
	}
}

func TestService_Ownership(t *testing.T) {
	s, ids := newService(t)
	ctx := context.Background()

	search, err := s.Create(ctx, "u1", Input{Date: "2025-11-21", StartTime: "18:00", EndTime: "21:00", LocationIDs: ids[:1]})
	require.NoError(t, err)

	_, err = s.Get(ctx, "u2", search.ID)
	assert.True(t, errs.Is(err, errs.ErrForbidden))
	_, err = s.Update(ctx, "u2", search.ID, Input{Date: "2025-11-21", StartTime: "18:00", EndTime: "21:00"})
	assert.True(t, errs.Is(err, errs.ErrForbidden))
	assert.True(t, errs.Is(s.Delete(ctx, "u2", search.ID), errs.ErrForbidden))

	_, err = s.Get(ctx, "u1", 12345)
	assert.True(t, errs.Is(err, errs.ErrNotFound))
}

func TestService_UpdateAndDelete(t *testing.T) {
	s, ids := newService(t)
	ctx := context.Background()

	search, err := s.Create(ctx, "u1", Input{Date: "2025-11-21", StartTime: "18:00", EndTime: "21:00", LocationIDs: ids[:1]})
	require.NoError(t, err)

	inactive := false
	updated, err := s.Update(ctx, "u1", search.ID, Input{Date: "2025-11-22", StartTime: "9:00", EndTime: "12:00",
		DurationMinutes: 60, CourtType: "indoor", LocationIDs: ids, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "09:00", updated.StartTime)

	got, err := s.Get(ctx, "u1", search.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-22", got.Date)
	assert.Equal(t, 60, got.DurationMinutes)
	assert.Equal(t, "indoor", got.CourtType)
	assert.Equal(t, ids, got.LocationIDs)
	assert.False(t, got.Active)

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Delete(ctx, "u1", search.ID))
	_, err = s.Get(ctx, "u1", search.ID)
	assert.True(t, errs.Is(err, errs.ErrNotFound))
}
