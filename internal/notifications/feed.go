package notifications

import (
	"slices"

	"github.com/anonto42/apollo/backend/internal/models"
)

// Feed is the merged, newest-first notification list of one activation.
//
// Every batch handed to Merge is the complete current output of one source
// (a comment chunk or the owned-posts query). Ids already in the feed keep
// their first-seen event. Without retraction the feed only grows; with it, an
// id that disappears from the source that produced it is dropped.
type Feed struct {
	events  []models.NotificationEvent
	index   map[string]int // id -> position in events, rebuilt after each change
	sources map[string]map[string]struct{}
	retract bool
}

// NewFeed creates an empty feed
func NewFeed(retract bool) *Feed {
	return &Feed{
		index:   make(map[string]int),
		sources: make(map[string]map[string]struct{}),
		retract: retract,
	}
}

// Merge folds the current result of source into the feed and reports whether
// the visible list changed
func (f *Feed) Merge(source string, batch []models.NotificationEvent) bool {
	current := make(map[string]struct{}, len(batch))
	changed := false

	for _, ev := range batch {
		current[ev.ID] = struct{}{}
		if _, ok := f.index[ev.ID]; ok {
			continue
		}
		f.index[ev.ID] = len(f.events)
		f.events = append(f.events, ev)
		changed = true
	}

	previous := f.sources[source]
	f.sources[source] = current

	if f.retract {
		for id := range previous {
			if _, still := current[id]; still || f.heldElsewhere(source, id) {
				continue
			}
			if f.remove(id) {
				changed = true
			}
		}
	}

	if changed {
		f.sort()
	}
	return changed
}

// Events returns a copy of the feed, newest first. It is never nil.
func (f *Feed) Events() []models.NotificationEvent {
	if len(f.events) == 0 {
		return []models.NotificationEvent{}
	}
	return slices.Clone(f.events)
}

// Len is the number of events in the feed
func (f *Feed) Len() int {
	return len(f.events)
}

func (f *Feed) heldElsewhere(source, id string) bool {
	for name, ids := range f.sources {
		if name == source {
			continue
		}
		if _, ok := ids[id]; ok {
			return true
		}
	}
	return false
}

func (f *Feed) remove(id string) bool {
	i, ok := f.index[id]
	if !ok {
		return false
	}
	f.events = slices.Delete(f.events, i, i+1)
	delete(f.index, id)
	f.reindex()
	return true
}

func (f *Feed) sort() {
	slices.SortStableFunc(f.events, func(a, b models.NotificationEvent) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	f.reindex()
}

func (f *Feed) reindex() {
	for i, ev := range f.events {
		f.index[ev.ID] = i
	}
}
