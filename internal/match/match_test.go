package match

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/provider"
	"court-watch-backend/internal/store"
	"court-watch-backend/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func baseCriteria() Criteria {
	c := Criteria{Date: "2025-11-20", StartTime: "18:00", EndTime: "20:00", DurationMinutes: 60}
	if err := c.Normalize(); err != nil {
		panic(err)
	}
	return c
}

func baseSlot() model.SlotMatch {
	return model.SlotMatch{
		SlotID: 1, CourtID: 1, LocationID: 1,
		Date: "2025-11-20", StartTime: "19:00", EndTime: "20:00", Duration: 60,
		Available: true, Indoor: ptr(true), Doubles: ptr(true),
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Criteria, s *model.SlotMatch)
		want   bool
	}{
		{"inside window", func(c *Criteria, s *model.SlotMatch) {}, true},
		{"starts at window start", func(c *Criteria, s *model.SlotMatch) { s.StartTime = "18:00" }, true},
		{"starts at window end and runs past it", func(c *Criteria, s *model.SlotMatch) { s.StartTime = "20:00"; s.EndTime = "21:00" }, true},
		{"starts before window", func(c *Criteria, s *model.SlotMatch) { s.StartTime = "17:59" }, false},
		{"starts after window", func(c *Criteria, s *model.SlotMatch) { s.StartTime = "20:01" }, false},
		{"other date", func(c *Criteria, s *model.SlotMatch) { s.Date = "2025-11-21" }, false},
		{"other duration", func(c *Criteria, s *model.SlotMatch) { s.Duration = 90 }, false},
		{"unavailable", func(c *Criteria, s *model.SlotMatch) { s.Available = false }, false},
		{"location filtered out", func(c *Criteria, s *model.SlotMatch) { c.LocationIDs = []int64{2} }, false},
		{"location filtered in", func(c *Criteria, s *model.SlotMatch) { c.LocationIDs = []int64{2, 1} }, true},
		{"indoor wanted", func(c *Criteria, s *model.SlotMatch) { c.CourtType = CourtTypeIndoor }, true},
		{"outdoor wanted", func(c *Criteria, s *model.SlotMatch) { c.CourtType = CourtTypeOutdoor }, false},
		{"indoor wanted, unknown court", func(c *Criteria, s *model.SlotMatch) { c.CourtType = CourtTypeIndoor; s.Indoor = nil }, false},
		{"any type, unknown court", func(c *Criteria, s *model.SlotMatch) { s.Indoor = nil; s.Doubles = nil }, true},
		{"single wanted", func(c *Criteria, s *model.SlotMatch) { c.CourtConfig = CourtConfigSingle }, false},
		{"single wanted, single court", func(c *Criteria, s *model.SlotMatch) { c.CourtConfig = CourtConfigSingle; s.Doubles = ptr(false) }, true},
		{"double wanted, unknown court", func(c *Criteria, s *model.SlotMatch) { c.CourtConfig = CourtConfigDouble; s.Doubles = nil }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, s := baseCriteria(), baseSlot()
			tt.mutate(&c, &s)
			assert.Equal(t, tt.want, Matches(c, s))
		})
	}
}

func TestCriteria_Normalize(t *testing.T) {
	c := Criteria{Date: "2025-11-20", StartTime: "9:00", EndTime: "21:30:00"}
	require.NoError(t, c.Normalize())
	assert.Equal(t, "09:00", c.StartTime)
	assert.Equal(t, "21:30", c.EndTime)
	assert.Equal(t, DefaultDuration, c.DurationMinutes)
	assert.Equal(t, CourtTypeAll, c.CourtType)
	assert.Equal(t, CourtConfigAll, c.CourtConfig)

	invalid := []Criteria{
		{Date: "2025-11-20", StartTime: "21:00", EndTime: "20:00"},
		{Date: "20-11-2025", StartTime: "18:00", EndTime: "20:00"},
		{Date: "2025-11-20", StartTime: "18:00", EndTime: "24:30"},
		{Date: "2025-11-20", StartTime: "18:00", EndTime: "20:00", CourtType: "covered"},
		{Date: "2025-11-20", StartTime: "18:00", EndTime: "20:00", DurationMinutes: -30},
		{StartTime: "18:00", EndTime: "20:00"},
	}
	for _, c := range invalid {
		err := c.Normalize()
		assert.True(t, errs.Is(err, errs.ErrInvalid), "%+v: %v", c, err)
	}
}

func TestGroup(t *testing.T) {
	rows := []model.SlotMatch{
		{SlotID: 1, CourtID: 10, LocationID: 1, LocationName: "Alpha", Slug: "alpha", CourtName: "Court 1", Date: "2025-11-20", StartTime: "18:00", EndTime: "19:00", Duration: 60, Price: "20 EUR"},
		{SlotID: 2, CourtID: 10, LocationID: 1, LocationName: "Alpha", Slug: "alpha", CourtName: "Court 1", Date: "2025-11-20", StartTime: "19:00", EndTime: "20:00", Duration: 60, Price: "20 EUR"},
		{SlotID: 3, CourtID: 11, LocationID: 1, LocationName: "Alpha", Slug: "alpha", CourtName: "Court 2", Date: "2025-11-20", StartTime: "18:30", EndTime: "19:30", Duration: 60},
		{SlotID: 4, CourtID: 20, LocationID: 2, LocationName: "Bravo", Slug: "bravo", CourtName: "Baan 1", Date: "2025-11-20", StartTime: "18:00", EndTime: "19:00", Duration: 60},
	}

	got := Group(rows, func(s model.SlotMatch) string {
		if s.SlotID == 1 {
			return "https://book.test/1"
		}
		return ""
	})

	want := &model.SearchResult{
		TotalSlots: 4,
		Locations: []model.LocationResult{
			{LocationID: 1, Name: "Alpha", Slug: "alpha", Courts: []model.CourtResult{
				{CourtID: 10, Name: "Court 1", Slots: []model.SlotResult{
					{SlotID: 1, Date: "2025-11-20", StartTime: "18:00", EndTime: "19:00", Duration: 60, Price: "20 EUR", BookingURL: "https://book.test/1"},
					{SlotID: 2, Date: "2025-11-20", StartTime: "19:00", EndTime: "20:00", Duration: 60, Price: "20 EUR"},
				}},
				{CourtID: 11, Name: "Court 2", Slots: []model.SlotResult{
					{SlotID: 3, Date: "2025-11-20", StartTime: "18:30", EndTime: "19:30", Duration: 60},
				}},
			}},
			{LocationID: 2, Name: "Bravo", Slug: "bravo", Courts: []model.CourtResult{
				{CourtID: 20, Name: "Baan 1", Slots: []model.SlotResult{
					{SlotID: 4, Date: "2025-11-20", StartTime: "18:00", EndTime: "19:00", Duration: 60},
				}},
			}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Group() mismatch (-want +got):\n%s", diff)
	}
}

func TestGroup_Empty(t *testing.T) {
	got := Group(nil, nil)
	assert.Equal(t, 0, got.TotalSlots)
	assert.NotNil(t, got.Locations)
}

func seed(t *testing.T, gdb *gorm.DB, st store.Store) (alpha, bravo *model.Location) {
	t.Helper()
	ctx := context.Background()
	bravo = &model.Location{Provider: "fake", TenantRef: "t-b", Name: "Bravo", Slug: "bravo"}
	alpha = &model.Location{Provider: "fake", TenantRef: "t-a", Name: "Alpha", Slug: "alpha"}
	require.NoError(t, st.UpsertLocation(ctx, bravo))
	require.NoError(t, st.UpsertLocation(ctx, alpha))

	courts := []model.Court{
		{LocationID: alpha.ID, Name: "Court 2", ResourceRef: ptr("a-2"), Indoor: ptr(false)},
		{LocationID: alpha.ID, Name: "Court 1", ResourceRef: ptr("a-1"), Indoor: ptr(true)},
		{LocationID: bravo.ID, Name: "Baan 1", ResourceRef: ptr("b-1"), Indoor: ptr(true)},
	}
	require.NoError(t, gdb.Create(&courts).Error)

	slot := func(courtID int64, start, end string, duration int, available bool) model.Slot {
		return model.Slot{CourtID: courtID, Date: "2025-11-20", StartTime: start, EndTime: end, Duration: duration, Available: available, Price: "24 EUR"}
	}
	slots := []model.Slot{
		slot(courts[0].ID, "19:00", "20:00", 60, true),
		slot(courts[1].ID, "20:00", "21:00", 60, true),
		slot(courts[1].ID, "18:00", "19:00", 60, true),
		slot(courts[1].ID, "18:00", "19:30", 90, true),
		slot(courts[2].ID, "18:30", "19:30", 60, true),
		slot(courts[2].ID, "19:30", "20:30", 60, false),
		slot(courts[2].ID, "21:00", "22:00", 60, true),
	}
	require.NoError(t, gdb.Create(&slots).Error)
	return alpha, bravo
}

func TestMatcher_Match(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	st := store.NewGormStore(gdb)
	alpha, bravo := seed(t, gdb, st)
	m := New(st, provider.NewRegistry(testutil.NewFakeProvider("fake")), zaptest.NewLogger(t).Sugar())

	c := Criteria{Date: "2025-11-20", StartTime: "18:00", EndTime: "20:00", DurationMinutes: 60, LocationIDs: []int64{alpha.ID, bravo.ID}}
	result, err := m.Match(ctx, &c)
	require.NoError(t, err)

	require.Len(t, result.Locations, 2)
	assert.Equal(t, 4, result.TotalSlots)
	assert.Equal(t, alpha.ID, result.Locations[0].LocationID)
	assert.Equal(t, bravo.ID, result.Locations[1].LocationID)

	alphaCourts := result.Locations[0].Courts
	require.Len(t, alphaCourts, 2)
	assert.Equal(t, "Court 1", alphaCourts[0].Name)
	require.Len(t, alphaCourts[0].Slots, 2)
	assert.Equal(t, "18:00", alphaCourts[0].Slots[0].StartTime)
	assert.Equal(t, "20:00", alphaCourts[0].Slots[1].StartTime, "start at window end matches")
	// 18:00 in Amsterdam in November is 17:00 UTC.
	assert.Equal(t, "https://book.test/t-a/a-1?start=2025-11-20T17:00&duration=60", alphaCourts[0].Slots[0].BookingURL)
	assert.Equal(t, "Court 2", alphaCourts[1].Name)

	c = Criteria{Date: "2025-11-20", StartTime: "18:00", EndTime: "20:00", DurationMinutes: 60, CourtType: CourtTypeIndoor, LocationIDs: []int64{bravo.ID}}
	rows, err := m.Find(ctx, &c)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Baan 1", rows[0].CourtName)
	assert.Equal(t, "18:30", rows[0].StartTime)
}

func TestMatcher_FindWithoutLocations(t *testing.T) {
	gdb := testutil.NewDB(t)
	st := store.NewGormStore(gdb)
	seed(t, gdb, st)
	m := New(st, nil, zaptest.NewLogger(t).Sugar())

	rows, err := m.Find(context.Background(), &Criteria{Date: "2025-11-20", StartTime: "18:00", EndTime: "20:00", DurationMinutes: 60})
	require.NoError(t, err)
	assert.Empty(t, rows, "an empty location list is not widened to every location")
}

func TestMatcher_FindInvalid(t *testing.T) {
	st := store.NewGormStore(testutil.NewDB(t))
	m := New(st, nil, zaptest.NewLogger(t).Sugar())
	_, err := m.Find(context.Background(), &Criteria{Date: "2025-11-20", StartTime: "20:00", EndTime: "18:00"})
	assert.True(t, errs.Is(err, errs.ErrInvalid))
}
