// Package sequence issues monotonically increasing integer identifiers from
// named counters stored alongside the entities they number.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/heropets/server/metrics"
	"github.com/heropets/server/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Counter names, one per entity kind.
const (
	Users      = "users"
	Heroes     = "heroes"
	Pets       = "pets"
	Adoptions  = "adoptions"
	GameEvents = "game_events"
)

// Names lists every counter in allocation order.
var Names = []string{Users, Heroes, Pets, Adoptions, GameEvents}

// Allocator hands out IDs. It holds no counter state of its own; every call
// goes to storage.
type Allocator struct {
	db *gorm.DB
}

// New returns an Allocator over db.
func New(db *gorm.DB) *Allocator {
	return &Allocator{db: db}
}

// WithTx returns an Allocator bound to tx. IDs drawn from it commit or roll
// back together with the caller's writes.
func (a *Allocator) WithTx(tx *gorm.DB) *Allocator {
	return &Allocator{db: tx}
}

// Next increments the named counter and returns the new value. The first call
// for a name returns 1.
func (a *Allocator) Next(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.Counter{Name: name}).Error; err != nil {
			return err
		}
		res := tx.Model(&model.Counter{}).
			Where("name = ?", name).
			Update("seq", gorm.Expr("seq + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("counter %q not updated", name)
		}
		return tx.Model(&model.Counter{}).
			Where("name = ?", name).
			Pluck("seq", &seq).Error
	})
	if err != nil {
		return 0, fmt.Errorf("sequence: next %s: %w", name, err)
	}
	metrics.SequenceAllocationsTotal.WithLabelValues(name).Inc()
	return seq, nil
}

// AtLeast raises the named counter to floor unless it is already higher, so
// the next ID issued is above every ID handed out by an earlier scheme.
func (a *Allocator) AtLeast(ctx context.Context, name string, floor int64) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.Counter{Name: name}).Error; err != nil {
			return err
		}
		return tx.Model(&model.Counter{}).
			Where("name = ? AND seq < ?", name, floor).
			Update("seq", floor).Error
	})
	if err != nil {
		return fmt.Errorf("sequence: raise %s: %w", name, err)
	}
	return nil
}

// Current returns the last value issued for name, or 0 if none was.
func (a *Allocator) Current(ctx context.Context, name string) (int64, error) {
	var c model.Counter
	err := a.db.WithContext(ctx).Where("name = ?", name).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sequence: current %s: %w", name, err)
	}
	return c.Seq, nil
}

// Snapshot returns the current value of every known counter.
func (a *Allocator) Snapshot(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(Names))
	for _, n := range Names {
		v, err := a.Current(ctx, n)
		if err != nil {
			return nil, err
		}
		out[n] = v
	}
	return out, nil
}
