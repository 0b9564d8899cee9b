package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safarmate/transit-backend/internal/models"
)

// LocationStore keeps one hash per bus with its latest telemetry
type LocationStore struct {
	rdb redis.UniversalClient
}

// NewLocationStore creates a new LocationStore
func NewLocationStore(rdb redis.UniversalClient) *LocationStore {
	return &LocationStore{rdb: rdb}
}

func locationKey(busID string) string {
	return "bus:location:" + busID
}

// Get returns the cached location, or nil if the bus never reported one
func (s *LocationStore) Get(ctx context.Context, busID string) (*models.LiveLocation, error) {
	fields, err := s.rdb.HGetAll(ctx, locationKey(busID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read location: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	loc := &models.LiveLocation{BusID: busID}
	if loc.Lat, err = strconv.ParseFloat(fields["lat"], 64); err != nil {
		return nil, fmt.Errorf("corrupt location lat for %s: %w", busID, err)
	}
	if loc.Lng, err = strconv.ParseFloat(fields["lng"], 64); err != nil {
		return nil, fmt.Errorf("corrupt location lng for %s: %w", busID, err)
	}
	loc.Speed = optionalFloat(fields["speed"])
	loc.Heading = optionalFloat(fields["heading"])
	if ts, ok := fields["updated_at"]; ok {
		loc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return loc, nil
}

// Upsert replaces the hash in one MULTI and reports whether it existed before
func (s *LocationStore) Upsert(ctx context.Context, loc *models.LiveLocation) (bool, error) {
	key := locationKey(loc.BusID)
	values := map[string]interface{}{
		"busId":      loc.BusID,
		"lat":        formatFloat(loc.Lat),
		"lng":        formatFloat(loc.Lng),
		"updated_at": loc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if loc.Speed != nil {
		values["speed"] = formatFloat(*loc.Speed)
	}
	if loc.Heading != nil {
		values["heading"] = formatFloat(*loc.Heading)
	}

	pipe := s.rdb.TxPipeline()
	exists := pipe.Exists(ctx, key)
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, values)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to write location: %w", err)
	}
	return exists.Val() > 0, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func optionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
