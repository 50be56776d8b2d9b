package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"

	"court-watch-backend/config"
	"court-watch-backend/internal/metrics"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/parse"
)

const playtomicName = "playtomic"

// Playtomic talks to playtomic.com: the public availability API for slots and
// the club page's embedded Next.js payload for club metadata.
type Playtomic struct {
	cfg     config.PlaytomicConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewPlaytomic creates a client, routing through cfg.HTTPProxy when set.
func NewPlaytomic(cfg config.PlaytomicConfig, log *zap.SugaredLogger) *Playtomic {
	var transport http.RoundTripper = http.DefaultTransport
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warnw("invalid proxy URL, not using a proxy", "proxy", cfg.HTTPProxy, "error", err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Playtomic{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

func (p *Playtomic) Name() string { return playtomicName }

type availabilityResource struct {
	ResourceID string `json:"resource_id"`
	StartDate  string `json:"start_date"`
	Slots      []struct {
		StartTime string `json:"start_time"`
		Duration  int    `json:"duration"`
		Price     string `json:"price"`
	} `json:"slots"`
}

func (p *Playtomic) FetchAvailability(ctx context.Context, tenantRef, date, sport string) ([]RawSlot, error) {
	q := url.Values{}
	q.Set("tenant_id", tenantRef)
	q.Set("date", date)
	q.Set("sport_id", sport)
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/api/clubs/availability?" + q.Encode()

	body, status, err := p.get(ctx, endpoint, "application/json")
	if err != nil {
		metrics.ProviderFetchTotal.WithLabelValues(playtomicName, "availability", "error").Inc()
		return nil, err
	}
	if status != http.StatusOK {
		metrics.ProviderFetchTotal.WithLabelValues(playtomicName, "availability", "error").Inc()
		return nil, fmt.Errorf("availability for tenant %s: received non-200 status code: %d", tenantRef, status)
	}

	var resources []availabilityResource
	if err := json.Unmarshal(body, &resources); err != nil {
		metrics.ProviderFetchTotal.WithLabelValues(playtomicName, "availability", "error").Inc()
		return nil, fmt.Errorf("failed to unmarshal availability response: %w", err)
	}
	metrics.ProviderFetchTotal.WithLabelValues(playtomicName, "availability", "ok").Inc()

	var out []RawSlot
	for _, res := range resources {
		slotDate := res.StartDate
		if slotDate == "" {
			slotDate = date
		}
		for _, s := range res.Slots {
			out = append(out, RawSlot{
				ResourceRef: res.ResourceID,
				Date:        slotDate,
				StartTime:   s.StartTime,
				Duration:    s.Duration,
				Price:       s.Price,
			})
		}
	}
	return out, nil
}

type nextData struct {
	Props struct {
		PageProps struct {
			Tenant *tenantPayload `json:"tenant"`
		} `json:"pageProps"`
	} `json:"props"`
}

type tenantPayload struct {
	TenantID   string `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
	Address    struct {
		Street     string `json:"street"`
		PostalCode string `json:"postal_code"`
		City       string `json:"city"`
		Country    string `json:"country"`
		Timezone   string `json:"timezone"`
	} `json:"address"`
	OpeningHours map[string]model.OpeningHours `json:"opening_hours"`
	SportIDs     []string                      `json:"sport_ids"`
	Resources    []struct {
		Name         string   `json:"name"`
		ResourceID   string   `json:"resourceId"`
		ResourceIDv2 string   `json:"resource_id"`
		Sport        string   `json:"sport"`
		SportID      string   `json:"sport_id"`
		Features     []string `json:"features"`
		Properties   struct {
			ResourceType string `json:"resource_type"`
			ResourceSize string `json:"resource_size"`
		} `json:"properties"`
	} `json:"resources"`
}

func (p *Playtomic) FetchClubInfo(ctx context.Context, slug string) (*ClubInfo, error) {
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/clubs/" + url.PathEscape(slug)

	body, status, err := p.get(ctx, endpoint, "text/html")
	if err != nil {
		metrics.ProviderFetchTotal.WithLabelValues(playtomicName, "club", "error").Inc()
		return nil, err
	}
	if status == http.StatusNotFound {
		metrics.ProviderFetchTotal.WithLabelValues(playtomicName, "club", "absent").Inc()
		return nil, nil
	}
	if status != http.StatusOK {
		metrics.ProviderFetchTotal.WithLabelValues(playtomicName, "club", "error").Inc()
		return nil, fmt.Errorf("club %s: received non-200 status code: %d", slug, status)
	}

	payload, ok := nextDataScript(body)
	if !ok {
		metrics.ProviderFetchTotal.WithLabelValues(playtomicName, "club", "absent").Inc()
		return nil, nil
	}
	var data nextData
	if err := json.Unmarshal(payload, &data); err != nil {
		metrics.ProviderFetchTotal.WithLabelValues(playtomicName, "club", "error").Inc()
		return nil, fmt.Errorf("failed to unmarshal club payload for %s: %w", slug, err)
	}
	tenant := data.Props.PageProps.Tenant
	if tenant == nil || tenant.TenantID == "" || tenant.TenantName == "" {
		metrics.ProviderFetchTotal.WithLabelValues(playtomicName, "club", "absent").Inc()
		return nil, nil
	}
	metrics.ProviderFetchTotal.WithLabelValues(playtomicName, "club", "ok").Inc()

	info := &ClubInfo{
		TenantRef:    tenant.TenantID,
		Name:         tenant.TenantName,
		Address:      joinNonEmpty(", ", tenant.Address.Street, strings.TrimSpace(tenant.Address.PostalCode+" "+tenant.Address.City), tenant.Address.Country),
		Timezone:     tenant.Address.Timezone,
		OpeningHours: tenant.OpeningHours,
		SportIDs:     tenant.SportIDs,
	}
	for _, r := range tenant.Resources {
		ref := r.ResourceID
		if ref == "" {
			ref = r.ResourceIDv2
		}
		sport := r.Sport
		if sport == "" {
			sport = r.SportID
		}
		features := r.Features
		if len(features) == 0 {
			for _, f := range []string{r.Properties.ResourceType, r.Properties.ResourceSize} {
				if f != "" {
					features = append(features, f)
				}
			}
		}
		info.Courts = append(info.Courts, CourtMeta{Name: r.Name, ResourceRef: ref, Sport: sport, Features: features})
	}
	return info, nil
}

// BookingURL links to the login page, which forwards to the payment page for
// the slot. The start is sent as a UTC ISO-8601 timestamp.
func (p *Playtomic) BookingURL(tenantRef, resourceRef, date, startUTC string, durationMinutes int) (string, bool) {
	if tenantRef == "" || resourceRef == "" || durationMinutes <= 0 {
		return "", false
	}
	clock, err := parse.Clock(startUTC)
	if err != nil {
		return "", false
	}
	if _, err := parse.Date(date); err != nil {
		return "", false
	}

	start := fmt.Sprintf("%sT%s:00.000Z", date, clock)
	returnURL := fmt.Sprintf("/payments?type=CUSTOMER_MATCH&tenant_id=%s&resource_id=%s&start=%s&duration=%d",
		tenantRef, resourceRef, url.QueryEscape(start), durationMinutes)
	return strings.TrimRight(p.cfg.AppURL, "/") + "/login?return_url=" + url.QueryEscape(returnURL), true
}

func (p *Playtomic) get(ctx context.Context, endpoint, accept string) ([]byte, int, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// nextDataScript extracts the body of <script id="__NEXT_DATA__">.
func nextDataScript(page []byte) ([]byte, bool) {
	z := html.NewTokenizer(strings.NewReader(string(page)))
	inTarget := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return nil, false
		case html.StartTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.Script {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key == "id" && attr.Val == "__NEXT_DATA__" {
					inTarget = true
				}
			}
		case html.TextToken:
			if inTarget {
				return []byte(strings.TrimSpace(string(z.Text()))), true
			}
		case html.EndTagToken:
			if inTarget {
				return nil, false
			}
		}
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}
