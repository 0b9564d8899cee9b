package memory

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/safarmate/transit-backend/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed demo_seed.yaml
var demoSeed []byte

// Seed is the YAML document loaded into an arena at startup
type Seed struct {
	Routes    []models.Route `yaml:"routes"`
	Buses     []models.Bus   `yaml:"buses"`
	Locations []SeedLocation `yaml:"locations"`
	Ledger    []SeedLedger   `yaml:"ledger"`
}

// SeedLocation is a live location relative to load time
type SeedLocation struct {
	BusID   string        `yaml:"bus_id" validate:"required"`
	Lat     float64       `yaml:"lat" validate:"latitude"`
	Lng     float64       `yaml:"lng" validate:"longitude"`
	Speed   *float64      `yaml:"speed"`
	Heading *float64      `yaml:"heading"`
	Age     time.Duration `yaml:"age"`
}

// SeedLedger is a ledger entry relative to load time
type SeedLedger struct {
	BusID     string              `yaml:"bus_id" validate:"required"`
	SeatCount int                 `yaml:"seat_count" validate:"gt=0"`
	Status    models.LedgerStatus `yaml:"status" validate:"oneof=hold reserved cancelled"`
	HoldTTL   time.Duration       `yaml:"hold_ttl"`
}

// DemoSeed returns the embedded demo data
func DemoSeed() (*Seed, error) {
	return ParseSeed(demoSeed)
}

// LoadSeedFile reads a seed document from disk
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates a seed document
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	v := validator.New()
	for _, loc := range seed.Locations {
		if err := v.Struct(loc); err != nil {
			return nil, fmt.Errorf("invalid seed location for %s: %w", loc.BusID, err)
		}
	}
	for _, e := range seed.Ledger {
		if err := v.Struct(e); err != nil {
			return nil, fmt.Errorf("invalid seed ledger entry for %s: %w", e.BusID, err)
		}
	}
	return &seed, nil
}

// Load copies the seed into the arena. Buses must reference known routes.
func (a *Arena) Load(seed *Seed) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	for i := range seed.Routes {
		r := seed.Routes[i]
		if r.ID == "" || r.Code == "" {
			return fmt.Errorf("seed route %d: id and code are required", i)
		}
		r.CreatedAt = now
		a.routes[r.ID] = copyRoute(&r)
	}
	for i := range seed.Buses {
		b := seed.Buses[i]
		if _, ok := a.routes[b.RouteID]; !ok {
			return fmt.Errorf("seed bus %s: unknown route %s", b.ID, b.RouteID)
		}
		if b.SeatCount <= 0 {
			b.SeatCount = models.DefaultSeatCount
		}
		if b.Status == "" {
			b.Status = models.BusStatusActive
		}
		b.CreatedAt, b.UpdatedAt = now, now
		a.buses[b.ID] = copyBus(&b)
	}
	for _, l := range seed.Locations {
		a.locations[l.BusID] = &models.LiveLocation{
			BusID:     l.BusID,
			Lat:       l.Lat,
			Lng:       l.Lng,
			Speed:     copyFloat(l.Speed),
			Heading:   copyFloat(l.Heading),
			UpdatedAt: now.Add(-l.Age),
		}
	}
	for _, e := range seed.Ledger {
		if _, ok := a.buses[e.BusID]; !ok {
			return fmt.Errorf("seed ledger entry: unknown bus %s", e.BusID)
		}
		entry := &models.SeatLedgerEntry{
			ID:        uuid.NewString(),
			BusID:     e.BusID,
			SeatCount: e.SeatCount,
			Status:    e.Status,
			CreatedAt: now,
		}
		if e.Status == models.LedgerStatusHold && e.HoldTTL > 0 {
			expires := now.Add(e.HoldTTL)
			entry.HoldExpiresAt = &expires
		}
		a.appendEntry(entry)
	}
	return nil
}
