package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"cache2k25/internal/model"
)

//go:embed events.json
var defaultEvents []byte

const deadlineLayout = "2006-01-02"

var ErrEventNotFound = errors.New("event not found")

// Catalog is the read-only list of fest events.
type Catalog struct {
	events []model.Event
	byID   map[string]int
}

// Default returns the catalog bundled with the binary.
func Default() *Catalog {
	c, err := Parse(defaultEvents)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a JSON file. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	c := &Catalog{events: events, byID: make(map[string]int, len(events))}
	for i, e := range events {
		if e.ID == "" {
			return nil, fmt.Errorf("event at index %d has no id", i)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate event id %q", e.ID)
		}
		if _, err := Deadline(e); err != nil {
			return nil, err
		}
		c.byID[e.ID] = i
	}
	return c, nil
}

func (c *Catalog) All() []model.Event {
	out := make([]model.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *Catalog) Lookup(id string) (model.Event, error) {
	i, ok := c.byID[id]
	if !ok {
		return model.Event{}, ErrEventNotFound
	}
	return c.events[i], nil
}

// IsTechnical reports whether id belongs to the technical allowlist.
func (c *Catalog) IsTechnical(id string) bool {
	e, err := c.Lookup(id)
	return err == nil && e.Category == model.Technical
}

// Deadline parses the event deadline as midnight UTC of the given date.
func Deadline(e model.Event) (time.Time, error) {
	t, err := time.Parse(deadlineLayout, e.Deadline)
	if err != nil {
		return time.Time{}, fmt.Errorf("event %q has bad deadline %q: %w", e.ID, e.Deadline, err)
	}
	return t, nil
}

// IsOpen is false only when the deadline is strictly before now.
func IsOpen(e model.Event, now time.Time) bool {
	d, err := Deadline(e)
	if err != nil {
		return false
	}
	return !d.Before(now)
}

// TeamSlots is the number of additional members the form collects.
func TeamSlots(e model.Event) int {
	if !e.RequiresTeam {
		return 0
	}
	if e.TeamSize > 1 {
		return e.TeamSize - 1
	}
	return 3
}

// GameIDSlots is the number of in-game identifiers the form collects.
func GameIDSlots(e model.Event) int {
	if !e.RequiresGameIDs {
		return 0
	}
	if e.TeamSize > 0 {
		return e.TeamSize
	}
	return 4
}
