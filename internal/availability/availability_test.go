package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"court-watch-backend/internal/freshness"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/provider"
	"court-watch-backend/internal/reconcile"
	"court-watch-backend/internal/store"
	"court-watch-backend/internal/testutil"
)

func setup(t *testing.T) (*Syncer, *testutil.FakeProvider, store.Store, *model.Location) {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	st := store.NewGormStore(testutil.NewDB(t))
	loc := &model.Location{Provider: "fake", TenantRef: "tenant-1", Name: "Padel Club", Slug: "padel-club"}
	require.NoError(t, st.UpsertLocation(context.Background(), loc))

	fake := testutil.NewFakeProvider("fake")
	fake.SetSlots("tenant-1",
		provider.RawSlot{ResourceRef: "A", Date: "2025-11-20", StartTime: "17:00:00", Duration: 60, Price: "25 EUR"},
		provider.RawSlot{ResourceRef: "A", Date: "2025-11-20", StartTime: "18:00:00", Duration: 90, Price: "36 EUR"},
	)

	s := NewSyncer(st, freshness.New(st, 15*time.Minute, log), provider.NewRegistry(fake), reconcile.New(st, log), log)
	return s, fake, st, loc
}

func TestSyncLocation_SkipsWhileFresh(t *testing.T) {
	ctx := context.Background()
	s, fake, st, loc := setup(t)

	out, err := s.SyncLocation(ctx, loc.ID, "2025-11-20", "PADEL", false)
	require.NoError(t, err)
	assert.True(t, out.Live)
	assert.Equal(t, reconcile.Counts{Added: 2}, out.Counts)

	rec, err := st.LatestFetch(ctx, freshness.Key("2025-11-20", loc.ID))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.SlotsFound)

	out, err = s.SyncLocation(ctx, loc.ID, "2025-11-20", "PADEL", false)
	require.NoError(t, err)
	assert.False(t, out.Live)
	assert.Equal(t, 1, fake.Calls("tenant-1"))

	out, err = s.SyncLocation(ctx, loc.ID, "2025-11-20", "PADEL", true)
	require.NoError(t, err)
	assert.True(t, out.Live)
	assert.Equal(t, reconcile.Counts{Updated: 2}, out.Counts)
	assert.Equal(t, 2, fake.Calls("tenant-1"))
}

func TestSyncLocation_ProviderError(t *testing.T) {
	ctx := context.Background()
	s, fake, st, loc := setup(t)
	fake.SetError("tenant-1", errors.New("upstream down"))

	_, err := s.SyncLocation(ctx, loc.ID, "2025-11-20", "PADEL", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	rec, err := st.LatestFetch(ctx, freshness.Key("2025-11-20", loc.ID))
	require.NoError(t, err)
	assert.Nil(t, rec, "failed fetches are not recorded")
}

func TestSyncLocation_UnknownProvider(t *testing.T) {
	ctx := context.Background()
	s, _, st, _ := setup(t)
	other := &model.Location{Provider: "matchi", TenantRef: "m-1", Name: "Other", Slug: "other"}
	require.NoError(t, st.UpsertLocation(ctx, other))

	_, err := s.SyncLocation(ctx, other.ID, "2025-11-20", "PADEL", false)
	assert.Error(t, err)
}

func TestSyncLocation_BookedSlotsStopMatching(t *testing.T) {
	ctx := context.Background()
	s, fake, st, loc := setup(t)

	_, err := s.SyncLocation(ctx, loc.ID, "2025-11-20", "PADEL", false)
	require.NoError(t, err)

	fake.SetSlots("tenant-1",
		provider.RawSlot{ResourceRef: "A", Date: "2025-11-20", StartTime: "17:00:00", Duration: 60, Price: "25 EUR"},
	)
	out, err := s.SyncLocation(ctx, loc.ID, "2025-11-20", "PADEL", true)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Counts{Updated: 1, Released: 1}, out.Counts)

	rows, err := st.SlotsForMatching(ctx, "2025-11-20", []int64{loc.ID})
	require.NoError(t, err)
	available := 0
	for _, r := range rows {
		if r.Available {
			available++
		}
	}
	assert.Equal(t, 1, available)
}
