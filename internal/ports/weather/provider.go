// Package weather resolves daily rainfall for a district, preferring locally
// stored readings and falling back to the remote weather service.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"claim-service/internal/models"
	"claim-service/internal/ports"

	"github.com/gofiber/fiber/v3/client"
	"github.com/redis/go-redis/v9"
)

const dateLayout = "2006-01-02"

type ReadingStore interface {
	ListReadings(ctx context.Context, district, state string, from, to time.Time) ([]models.WeatherReading, error)
	UpsertReadings(ctx context.Context, readings []models.WeatherReading) error
}

type Provider struct {
	store    ReadingStore
	http     *client.Client
	baseURL  string
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewProvider wires the reading store with optional remote and cache layers.
// An empty baseURL disables the remote fetch; a nil cache disables caching.
func NewProvider(store ReadingStore, baseURL string, cache *redis.Client, cacheTTL time.Duration) *Provider {
	p := &Provider{
		store:    store,
		baseURL:  strings.TrimRight(baseURL, "/"),
		cache:    cache,
		cacheTTL: cacheTTL,
	}
	if p.baseURL != "" {
		p.http = client.New().SetBaseURL(p.baseURL)
	}
	return p
}

// Rainfall resolves daily readings for [from, to]. Stored readings are used
// only when they cover every day of the range; otherwise the remote service is
// asked for the whole range and its values win. Partial answers are not cached.
func (p *Provider) Rainfall(ctx context.Context, district, state string, from, to time.Time) []ports.RainfallReading {
	key := cacheKey(district, state, from, to)
	if cached, ok := p.fromCache(ctx, key); ok {
		return cached
	}

	readings, err := p.fromStore(ctx, district, state, from, to)
	if err != nil {
		slog.Error("failed to read stored rainfall", "district", district, "state", state, "error", err)
	}

	complete := coversRange(readings, from, to)
	if !complete && p.http != nil {
		remote, err := p.fromRemote(ctx, district, state, from, to)
		if err != nil {
			slog.Error("failed to fetch remote rainfall", "district", district, "state", state, "error", err)
		} else {
			p.persist(ctx, district, state, remote)
			readings = mergeByDay(readings, remote)
			complete = true
		}
	}

	if len(readings) == 0 {
		slog.Warn("no rainfall data available", "district", district, "state", state,
			"from", from.Format(dateLayout), "to", to.Format(dateLayout))
		return []ports.RainfallReading{}
	}

	sort.Slice(readings, func(i, j int) bool { return readings[i].Date.Before(readings[j].Date) })
	if !complete {
		slog.Warn("rainfall data covers only part of the period",
			"district", district,
			"state", state,
			"days", len(readings),
			"expected_days", daysInRange(from, to))
		return readings
	}
	p.toCache(ctx, key, readings)
	return readings
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysInRange(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(dayOf(to).Sub(dayOf(from)).Hours()/24) + 1
}

// coversRange reports whether readings hold a value for every calendar day in [from, to].
func coversRange(readings []ports.RainfallReading, from, to time.Time) bool {
	first, last := dayOf(from), dayOf(to)
	seen := make(map[time.Time]struct{}, len(readings))
	for _, r := range readings {
		d := dayOf(r.Date)
		if d.Before(first) || d.After(last) {
			continue
		}
		seen[d] = struct{}{}
	}
	return len(seen) == daysInRange(from, to)
}

// mergeByDay keeps one reading per day, preferring the remote value.
func mergeByDay(stored, remote []ports.RainfallReading) []ports.RainfallReading {
	byDay := make(map[time.Time]ports.RainfallReading, len(stored)+len(remote))
	for _, r := range stored {
		byDay[dayOf(r.Date)] = r
	}
	for _, r := range remote {
		byDay[dayOf(r.Date)] = r
	}
	merged := make([]ports.RainfallReading, 0, len(byDay))
	for _, r := range byDay {
		merged = append(merged, r)
	}
	return merged
}

func (p *Provider) fromStore(ctx context.Context, district, state string, from, to time.Time) ([]ports.RainfallReading, error) {
	if p.store == nil {
		return nil, nil
	}
	stored, err := p.store.ListReadings(ctx, district, state, from, to)
	if err != nil {
		return nil, err
	}
	readings := make([]ports.RainfallReading, 0, len(stored))
	for _, r := range stored {
		readings = append(readings, ports.RainfallReading{Date: r.Date, RainfallMM: r.RainfallMM})
	}
	return readings, nil
}

type remoteReading struct {
	Date       string  `json:"date"`
	RainfallMM float64 `json:"rainfallMm"`
}

type remoteResponse struct {
	Success bool            `json:"success"`
	Data    []remoteReading `json:"data"`
}

func (p *Provider) fromRemote(ctx context.Context, district, state string, from, to time.Time) ([]ports.RainfallReading, error) {
	resp, err := p.http.Get("/weather/rainfall", client.Config{
		Ctx: ctx,
		Param: map[string]string{
			"district": district,
			"state":    state,
			"from":     from.Format(dateLayout),
			"to":       to.Format(dateLayout),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call weather service: %w", err)
	}
	defer resp.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("weather service returned status %d", resp.StatusCode())
	}

	var body remoteResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("failed to parse weather response: %w", err)
	}
	if !body.Success {
		return nil, errors.New("weather service reported failure")
	}

	readings := make([]ports.RainfallReading, 0, len(body.Data))
	for _, r := range body.Data {
		day, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid reading date %q: %w", r.Date, err)
		}
		if r.RainfallMM < 0 {
			return nil, fmt.Errorf("negative rainfall %v on %s", r.RainfallMM, r.Date)
		}
		readings = append(readings, ports.RainfallReading{Date: day, RainfallMM: r.RainfallMM})
	}
	return readings, nil
}

func (p *Provider) persist(ctx context.Context, district, state string, readings []ports.RainfallReading) {
	if p.store == nil || len(readings) == 0 {
		return
	}
	rows := make([]models.WeatherReading, 0, len(readings))
	for _, r := range readings {
		rows = append(rows, models.WeatherReading{District: district, State: state, Date: r.Date, RainfallMM: r.RainfallMM})
	}
	if err := p.store.UpsertReadings(ctx, rows); err != nil {
		slog.Error("failed to store fetched rainfall", "district", district, "state", state, "error", err)
	}
}

func cacheKey(district, state string, from, to time.Time) string {
	return fmt.Sprintf("weather:rainfall:%s:%s:%s:%s",
		strings.ToLower(state), strings.ToLower(district), from.Format(dateLayout), to.Format(dateLayout))
}

func (p *Provider) fromCache(ctx context.Context, key string) ([]ports.RainfallReading, bool) {
	if p.cache == nil {
		return nil, false
	}
	raw, err := p.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("rainfall cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var readings []ports.RainfallReading
	if err := json.Unmarshal(raw, &readings); err != nil {
		slog.Warn("rainfall cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return readings, true
}

func (p *Provider) toCache(ctx context.Context, key string, readings []ports.RainfallReading) {
	if p.cache == nil {
		return
	}
	raw, err := json.Marshal(readings)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, raw, p.cacheTTL).Err(); err != nil {
		slog.Warn("rainfall cache write failed", "key", key, "error", err)
	}
}
