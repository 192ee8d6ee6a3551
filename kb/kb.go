package kb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/signalsfoundry/debris-risk/model"
)

var (
	// ErrProfileExists indicates a profile ID is already registered.
	ErrProfileExists = errors.New("profile already exists")
	// ErrProfileNotFound indicates a requested profile was not found.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrInvalidProfile indicates a profile failed structural validation.
	ErrInvalidProfile = errors.New("invalid profile")
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventProfileAdded EventType = iota
	EventProfileUpdated
	EventProfileDeleted
)

func (t EventType) String() string {
	switch t {
	case EventProfileAdded:
		return "added"
	case EventProfileUpdated:
		return "updated"
	case EventProfileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers after the catalog changes. Profile is a
// copy taken at the time of the change. Revision increases with every
// change to the catalog, so subscribers can discard events delivered out of
// order by concurrent writers.
type Event struct {
	Type     EventType
	Revision uint64
	Profile  model.Profile
}

// Catalog is an in-memory, thread-safe store of satellite profiles. Stored
// profiles are copied on the way in and out, so callers never share state
// with the catalog.
type Catalog struct {
	mu sync.RWMutex

	profiles map[string]model.Profile
	revision uint64

	nextSub int
	subs    map[int]func(Event)
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		profiles: make(map[string]model.Profile),
		subs:     make(map[int]func(Event)),
	}
}

// AddProfile registers a new profile. It returns ErrProfileExists if the ID
// is taken.
func (c *Catalog) AddProfile(p model.Profile) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidProfile)
	}
	if (p.TLELine1 == "") != (p.TLELine2 == "") {
		return fmt.Errorf("%w: profile %q must set both TLE lines or neither", ErrInvalidProfile, p.ID)
	}

	c.mu.Lock()
	if _, exists := c.profiles[p.ID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrProfileExists, p.ID)
	}
	c.profiles[p.ID] = p
	c.revision++
	ev := Event{Type: EventProfileAdded, Revision: c.revision, Profile: p}
	subs := c.snapshotSubsLocked()
	c.mu.Unlock()

	notify(subs, ev)
	return nil
}

// GetProfile returns a copy of the profile with the given ID.
func (c *Catalog) GetProfile(id string) (model.Profile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.profiles[id]
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: %q", ErrProfileNotFound, id)
	}
	return p, nil
}

// ListProfiles returns a snapshot of all profiles ordered by ID.
func (c *Catalog) ListProfiles() []model.Profile {
	c.mu.RLock()
	res := make([]model.Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		res = append(res, p)
	}
	c.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Revision returns the revision of the most recent change.
func (c *Catalog) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// Len returns the number of registered profiles.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}

// UpdateParameters replaces a profile's parameter set and notifies
// subscribers.
func (c *Catalog) UpdateParameters(id string, params model.ParameterSet) (model.Profile, error) {
	c.mu.Lock()
	p, ok := c.profiles[id]
	if !ok {
		c.mu.Unlock()
		return model.Profile{}, fmt.Errorf("%w: %q", ErrProfileNotFound, id)
	}
	p.Parameters = params
	c.profiles[id] = p
	c.revision++
	ev := Event{Type: EventProfileUpdated, Revision: c.revision, Profile: p}
	subs := c.snapshotSubsLocked()
	c.mu.Unlock()

	notify(subs, ev)
	return p, nil
}

// DeleteProfile removes a profile and notifies subscribers.
func (c *Catalog) DeleteProfile(id string) error {
	c.mu.Lock()
	p, ok := c.profiles[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrProfileNotFound, id)
	}
	delete(c.profiles, id)
	c.revision++
	ev := Event{Type: EventProfileDeleted, Revision: c.revision, Profile: p}
	subs := c.snapshotSubsLocked()
	c.mu.Unlock()

	notify(subs, ev)
	return nil
}

// Subscribe registers a callback for catalog events. Callbacks run on the
// goroutine that made the change, outside the catalog lock. It returns an
// unsubscribe function that is safe to call more than once.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Catalog) snapshotSubsLocked() []func(Event) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, c.subs[id])
	}
	return subs
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
