package health

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Broadcaster pushes health changes to connected websocket clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

type itemKey struct {
	category Category
	id       string
}

// Service tracks the health of configured resources. State is in-memory
// only; the health tasks rebuild it on every pass, so a restart simply
// starts from a clean slate.
type Service struct {
	mu     sync.RWMutex
	items  map[itemKey]*Item
	hub    Broadcaster
	logger zerolog.Logger
}

// NewService creates a new health service.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		items:  make(map[itemKey]*Item),
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// SetBroadcaster attaches the websocket hub for live updates.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	s.hub = b
	s.mu.Unlock()
}

// SyncItems reconciles a category against the currently configured
// resources, given as id→name. Unknown ids are dropped; new ones start
// healthy; existing ones keep their status but pick up renames.
func (s *Service) SyncItems(category Category, current map[string]string) {
	if !validCategory(category) {
		return
	}

	s.mu.Lock()
	for key := range s.items {
		if key.category != category {
			continue
		}
		if _, ok := current[key.id]; !ok {
			delete(s.items, key)
		}
	}

	var added []*Item
	for id, name := range current {
		key := itemKey{category, id}
		if it, ok := s.items[key]; ok {
			it.Name = name
			continue
		}
		it := &Item{ID: id, Category: category, Name: name, Status: StatusOK}
		s.items[key] = it
		added = append(added, it)
	}
	s.mu.Unlock()

	for _, it := range added {
		s.publish(*it)
	}
}

// SetError marks an item unhealthy.
func (s *Service) SetError(category Category, id, message string) {
	s.transition(category, id, StatusError, message)
}

// SetWarning marks an item degraded. Binary categories skip straight to
// error or ok, so a warning there is ignored.
func (s *Service) SetWarning(category Category, id, message string) {
	if category.binary() {
		return
	}
	s.transition(category, id, StatusWarning, message)
}

// ClearStatus returns an item to healthy.
func (s *Service) ClearStatus(category Category, id string) {
	s.transition(category, id, StatusOK, "")
}

func (s *Service) transition(category Category, id string, status Status, message string) {
	s.mu.Lock()
	it, ok := s.items[itemKey{category, id}]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn().
			Str("category", string(category)).
			Str("id", id).
			Msg("status update for untracked item")
		return
	}
	if it.Status == status && it.Message == message {
		s.mu.Unlock()
		return
	}

	prev := it.Status
	it.Status = status
	it.Message = message
	it.Since = nil
	if status != StatusOK {
		now := time.Now()
		it.Since = &now
	}
	snapshot := *it
	s.mu.Unlock()

	s.logger.Info().
		Str("category", string(category)).
		Str("id", id).
		Str("name", snapshot.Name).
		Str("from", string(prev)).
		Str("to", string(status)).
		Str("message", message).
		Msg("health status changed")
	s.publish(snapshot)
}

// IsHealthy reports whether a tracked item is currently OK.
func (s *Service) IsHealthy(category Category, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[itemKey{category, id}]
	return ok && it.Status == StatusOK
}

// GetAll returns every tracked item grouped by category, each group
// sorted by name for stable API output.
func (s *Service) GetAll() map[Category][]Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Category][]Item, len(categories))
	for _, cat := range categories {
		out[cat] = []Item{}
	}
	for key, it := range s.items {
		out[key.category] = append(out[key.category], *it)
	}
	for _, items := range out {
		sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	}
	return out
}

// GetByCategory returns the items of one category sorted by name.
func (s *Service) GetByCategory(category Category) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []Item{}
	for key, it := range s.items {
		if key.category == category {
			items = append(items, *it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

// GetSummary returns per-category status counts.
func (s *Service) GetSummary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Counts: make(map[Category]Counts, len(categories))}
	for _, cat := range categories {
		sum.Counts[cat] = Counts{}
	}
	for key, it := range s.items {
		c := sum.Counts[key.category]
		switch it.Status {
		case StatusWarning:
			c.Warning++
			sum.HasIssues = true
		case StatusError:
			c.Error++
			sum.HasIssues = true
		default:
			c.OK++
		}
		sum.Counts[key.category] = c
	}
	return sum
}

func (s *Service) publish(it Item) {
	s.mu.RLock()
	hub := s.hub
	s.mu.RUnlock()
	if hub == nil {
		return
	}
	if err := hub.Broadcast("health:updated", it); err != nil {
		s.logger.Error().Err(err).Msg("failed to broadcast health update")
	}
}
