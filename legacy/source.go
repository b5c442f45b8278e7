// Package legacy moves the document store into the relational store. Records
// already keyed by integers keep their ID; records still keyed by object IDs
// are renumbered past the document store's counters.
package legacy

import (
	"context"
	"math"
	"time"
)

// Source collection names as they exist in the legacy deployment.
const (
	CollUsers     = "users"
	CollHeroes    = "heroes"
	CollPets      = "pets"
	CollAdoptions = "adoptions"
	CollPetGames  = "petgames"
)

// Counter names in the legacy counters collection.
const (
	CounterUsers     = "usuarios"
	CounterHeroes    = "heroes"
	CounterPets      = "mascotas"
	CounterAdoptions = "adopciones"
	CounterPetGames  = "petgame"
)

// Ref is a reference to a legacy object ID (hex encoded). Integer references
// appear as int64 instead.
type Ref string

// Document is one legacy record. Field values are normalized to string,
// int64, float64, bool, time.Time, Ref, []any or nil.
type Document struct {
	// ID is the hex object ID, or the decimal form of Num.
	ID string
	// Num is the integer key of a document created under the counter
	// scheme; zero for object-ID documents.
	Num    int64
	Fields map[string]any
}

// Source is the legacy document store.
type Source interface {
	// FindLegacy returns every document in collection whose ID is still an
	// object ID.
	FindLegacy(ctx context.Context, collection string) ([]Document, error)
	// FindNumbered returns every document in collection already keyed by
	// an integer.
	FindNumbered(ctx context.Context, collection string) ([]Document, error)
	// Counter returns the last value the legacy counter issued, 0 when the
	// counter does not exist.
	Counter(ctx context.Context, name string) (int64, error)
	// MaxRef returns the largest integer held in field across collection,
	// 0 when there is none.
	MaxRef(ctx context.Context, collection, field string) (int64, error)
	// RewriteRef replaces references to oldID in field with newID and
	// reports how many documents changed.
	RewriteRef(ctx context.Context, collection, field, oldID string, newID int64) (int64, error)
	// Delete removes the given legacy documents.
	Delete(ctx context.Context, collection string, ids []string) (int64, error)
}

// integer accepts a normalized value holding a whole number.
func integer(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case float64:
		if t == math.Trunc(t) {
			return int64(t), true
		}
	}
	return 0, false
}

func (d Document) str(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

func (d Document) strPtr(field string) *string {
	s, ok := d.Fields[field].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func (d Document) num(field string) (float64, bool) {
	switch v := d.Fields[field].(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func (d Document) intOr(field string, def int) int {
	if v, ok := d.num(field); ok {
		return int(v)
	}
	return def
}

func (d Document) boolOr(field string, def bool) bool {
	if v, ok := d.Fields[field].(bool); ok {
		return v
	}
	return def
}

func (d Document) timeOr(field string, def time.Time) time.Time {
	if v, ok := d.Fields[field].(time.Time); ok {
		return v
	}
	return def
}

func (d Document) strings(field string) []string {
	out := []string{}
	list, _ := d.Fields[field].([]any)
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
