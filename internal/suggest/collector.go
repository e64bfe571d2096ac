package suggest

import (
	"context"
	"fmt"
	"sort"

	"attendly/internal/models"
	"attendly/internal/util"
)

type emailStats struct {
	count  int
	name   string
	lastID uint
}

// Collector folds records into per-address aggregates, so a season is scanned page by
// page without holding its records in memory. Memory grows with distinct addresses and
// client ids, not with records.
type Collector struct {
	emails  map[string]*emailStats
	clients map[string]map[string]struct{}
}

func NewCollector() *Collector {
	return &Collector{
		emails:  make(map[string]*emailStats),
		clients: make(map[string]map[string]struct{}),
	}
}

// Add accounts for one record.
func (c *Collector) Add(rec models.AttendanceRecord) {
	email := util.NormalizeEmail(rec.AttendeeEmail)
	if email == "" {
		return
	}
	st, ok := c.emails[email]
	if !ok {
		st = &emailStats{}
		c.emails[email] = st
	}
	st.count++
	// latest name wins
	if rec.ID >= st.lastID {
		st.lastID = rec.ID
		st.name = rec.AttendeeName
	}

	if synthetic(rec.ClientID) {
		return
	}
	set, ok := c.clients[rec.ClientID]
	if !ok {
		set = make(map[string]struct{})
		c.clients[rec.ClientID] = set
	}
	set[email] = struct{}{}
}

// Suggestions returns at most limit suggestions, skipping dismissed pairs.
// dismissed is keyed by Pair order.
func (c *Collector) Suggestions(limit int, dismissed map[[2]string]bool) []Suggestion {
	if limit <= 0 {
		limit = DefaultLimit
	}
	found := make(map[[2]string]*Suggestion)
	add := func(a, b string, dist int, sig Signal) {
		a, b = Pair(a, b)
		key := [2]string{a, b}
		if dismissed[key] {
			return
		}
		s, ok := found[key]
		if !ok {
			s = &Suggestion{
				EmailA:      a,
				EmailB:      b,
				NameA:       c.emails[a].name,
				NameB:       c.emails[b].name,
				Distance:    dist,
				RecordCount: c.emails[a].count + c.emails[b].count,
			}
			found[key] = s
		}
		for _, have := range s.Signals {
			if have == sig {
				return
			}
		}
		s.Signals = append(s.Signals, sig)
		s.Distance = min(s.Distance, dist)
	}

	for _, set := range c.clients {
		if len(set) < 2 {
			continue
		}
		emails := sortedKeys(set)
		for i := range emails {
			for j := i + 1; j < len(emails); j++ {
				add(emails[i], emails[j], 0, SignalFingerprint)
			}
		}
	}

	all := sortedKeys(c.emails)
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if dist, ok := Similarity(all[i], all[j]); ok {
				add(all[i], all[j], dist, SignalSimilarity)
			}
		}
	}

	list := make([]Suggestion, 0, len(found))
	for _, s := range found {
		list = append(list, *s)
	}
	sortSuggestions(list)
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

// Suggest runs both signals over an in-memory record set.
func Suggest(records []models.AttendanceRecord, limit int) []Suggestion {
	c := NewCollector()
	for _, r := range records {
		c.Add(r)
	}
	return c.Suggestions(limit, nil)
}

// PageSource yields records of a set of events in id order.
type PageSource interface {
	RecordsPage(ctx context.Context, eventIDs []string, afterID uint, limit int) ([]models.AttendanceRecord, error)
}

// Collect feeds every record of eventIDs into a new Collector, batch records at a time.
func Collect(ctx context.Context, src PageSource, eventIDs []string, batch int) (*Collector, error) {
	if batch <= 0 {
		batch = 500
	}
	c := NewCollector()
	var after uint
	for {
		page, err := src.RecordsPage(ctx, eventIDs, after, batch)
		if err != nil {
			return nil, fmt.Errorf("collect records: %w", err)
		}
		for _, r := range page {
			c.Add(r)
		}
		if len(page) < batch {
			return c, nil
		}
		after = page[len(page)-1].ID
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
