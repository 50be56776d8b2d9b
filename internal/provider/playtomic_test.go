package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"court-watch-backend/config"
)

const clubPage = `<!DOCTYPE html><html><head><title>Club</title></head><body>
<div id="__next"></div>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"tenant":{
  "tenant_id":"tenant-1","tenant_name":"Padel Club Utrecht",
  "address":{"street":"Baan 1","postal_code":"3511 AA","city":"Utrecht","country":"NL","timezone":"Europe/Amsterdam"},
  "opening_hours":{"MONDAY":{"opening_time":"07:00:00","closing_time":"23:00:00"}},
  "sport_ids":["PADEL"],
  "resources":[
    {"name":"Court 1","resourceId":"r-1","sport":"PADEL","features":["indoor","double"]},
    {"name":"Court 2","resource_id":"r-2","sport_id":"PADEL","properties":{"resource_type":"outdoor","resource_size":"single"}}
  ]}}}}
</script></body></html>`

func newTestPlaytomic(t *testing.T, handler http.HandlerFunc) *Playtomic {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewPlaytomic(config.PlaytomicConfig{
		BaseURL: server.URL,
		AppURL:  "https://app.playtomic.com",
		Timeout: 5 * time.Second,
	}, zap.NewNop().Sugar())
}

func TestPlaytomic_FetchAvailability(t *testing.T) {
	p := newTestPlaytomic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/clubs/availability", r.URL.Path)
		assert.Equal(t, "tenant-1", r.URL.Query().Get("tenant_id"))
		assert.Equal(t, "2025-11-20", r.URL.Query().Get("date"))
		assert.Equal(t, "PADEL", r.URL.Query().Get("sport_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"resource_id":"r-1","start_date":"2025-11-20","slots":[
				{"start_time":"17:00:00","duration":60,"price":"24 EUR"},
				{"start_time":"17:00:00","duration":90,"price":"36 EUR"}]},
			{"resource_id":"r-2","slots":[{"start_time":"18:30:00","duration":60,"price":"20 EUR"}]}
		]`))
	})

	slots, err := p.FetchAvailability(context.Background(), "tenant-1", "2025-11-20", "PADEL")
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, RawSlot{ResourceRef: "r-1", Date: "2025-11-20", StartTime: "17:00:00", Duration: 90, Price: "36 EUR"}, slots[1])
	assert.Equal(t, "2025-11-20", slots[2].Date, "missing start_date falls back to the requested date")
}

func TestPlaytomic_FetchAvailability_Non200(t *testing.T) {
	p := newTestPlaytomic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.FetchAvailability(context.Background(), "tenant-1", "2025-11-20", "PADEL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestPlaytomic_FetchClubInfo(t *testing.T) {
	p := newTestPlaytomic(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clubs/padel-club-utrecht":
			w.Write([]byte(clubPage))
		case "/clubs/no-payload":
			w.Write([]byte(`<html><body>nothing here</body></html>`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	info, err := p.FetchClubInfo(ctx, "padel-club-utrecht")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "tenant-1", info.TenantRef)
	assert.Equal(t, "Padel Club Utrecht", info.Name)
	assert.Equal(t, "Baan 1, 3511 AA Utrecht, NL", info.Address)
	assert.Equal(t, "Europe/Amsterdam", info.Timezone)
	assert.Equal(t, "07:00:00", info.OpeningHours["MONDAY"].OpeningTime)
	assert.Equal(t, []CourtMeta{
		{Name: "Court 1", ResourceRef: "r-1", Sport: "PADEL", Features: []string{"indoor", "double"}},
		{Name: "Court 2", ResourceRef: "r-2", Sport: "PADEL", Features: []string{"outdoor", "single"}},
	}, info.Courts)

	info, err = p.FetchClubInfo(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, info)

	info, err = p.FetchClubInfo(ctx, "no-payload")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestPlaytomic_BookingURL(t *testing.T) {
	p := NewPlaytomic(config.PlaytomicConfig{AppURL: "https://app.playtomic.com"}, zap.NewNop().Sugar())

	link, ok := p.BookingURL("tenant-1", "r-1", "2025-11-30", "20:00", 90)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(link, "https://app.playtomic.com/login?return_url=%2Fpayments%3F"))

	u, err := url.Parse(link)
	require.NoError(t, err)
	ret, err := url.Parse(u.Query().Get("return_url"))
	require.NoError(t, err)
	assert.Equal(t, "/payments", ret.Path)
	q := ret.Query()
	assert.Equal(t, "CUSTOMER_MATCH", q.Get("type"))
	assert.Equal(t, "tenant-1", q.Get("tenant_id"))
	assert.Equal(t, "r-1", q.Get("resource_id"))
	assert.Equal(t, "2025-11-30T20:00:00.000Z", q.Get("start"))
	assert.Equal(t, "90", q.Get("duration"))

	_, ok = p.BookingURL("", "r-1", "2025-11-30", "20:00", 90)
	assert.False(t, ok)
	_, ok = p.BookingURL("tenant-1", "", "2025-11-30", "20:00", 90)
	assert.False(t, ok)
}

func TestRegistry_Get(t *testing.T) {
	p := NewPlaytomic(config.PlaytomicConfig{}, zap.NewNop().Sugar())
	reg := NewRegistry(p)

	got, err := reg.Get("playtomic")
	require.NoError(t, err)
	assert.Same(t, p, got.(*Playtomic))

	_, err = reg.Get("matchi")
	assert.Error(t, err)
	assert.Equal(t, []string{"playtomic"}, reg.Names())
}
