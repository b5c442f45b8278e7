package legacy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heropets/server/game/pet"
	"github.com/heropets/server/metrics"
	"github.com/heropets/server/model"
	"github.com/heropets/server/sequence"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// errDangling marks a document whose reference points at nothing.
	errDangling = errors.New("dangling reference")
	// errIDTaken marks an integer-keyed document whose ID already belongs
	// to a row the migration did not create.
	errIDTaken = errors.New("id already in use")
)

// refField is a field in another collection that holds IDs of this one.
type refField struct {
	collection string
	field      string
}

type step struct {
	collection    string
	counter       string
	legacyCounter string
	dependents    []refField
	// empty returns a zero record for existence checks.
	empty func() any
	// build turns doc into the record to insert under id.
	build func(tx *gorm.DB, doc Document, id int64) (any, error)
}

// steps run referenced collections before the ones that point at them, so
// by the time a collection is read its references are already integers.
var steps = []step{
	{
		collection:    CollUsers,
		counter:       sequence.Users,
		legacyCounter: CounterUsers,
		empty:         func() any { return &model.User{} },
		dependents: []refField{
			{CollHeroes, "usuario"},
			{CollPets, "usuario"},
			{CollAdoptions, "usuario"},
		},
		build: buildUser,
	},
	{
		collection:    CollHeroes,
		counter:       sequence.Heroes,
		legacyCounter: CounterHeroes,
		empty:         func() any { return &model.Hero{} },
		dependents:    []refField{{CollAdoptions, "heroe"}},
		build:         buildHero,
	},
	{
		collection:    CollPets,
		counter:       sequence.Pets,
		legacyCounter: CounterPets,
		empty:         func() any { return &model.Pet{} },
		dependents: []refField{
			{CollAdoptions, "mascota"},
			{CollPetGames, "mascota"},
		},
		build: buildPet,
	},
	{
		collection:    CollAdoptions,
		counter:       sequence.Adoptions,
		legacyCounter: CounterAdoptions,
		empty:         func() any { return &model.Adoption{} },
		build:         buildAdoption,
	},
	{
		collection:    CollPetGames,
		counter:       sequence.GameEvents,
		legacyCounter: CounterPetGames,
		empty:         func() any { return &model.GameEvent{} },
		build:         buildGameEvent,
	},
}

// CollectionReport summarizes one collection's migration.
type CollectionReport struct {
	Collection string `json:"collection"`
	Found      int    `json:"found"`
	// Imported counts integer-keyed documents copied under their own ID.
	Imported int `json:"imported"`
	// Migrated counts object-ID documents given a new ID.
	Migrated      int              `json:"migrated"`
	Resumed       int              `json:"resumed"`
	Skipped       []string         `json:"skipped"`
	CounterFloor  int64            `json:"counterFloor"`
	RefsRewritten int64            `json:"refsRewritten"`
	Deleted       int64            `json:"deleted"`
	Mapping       map[string]int64 `json:"mapping"`
}

// Report is the result of a migration run.
type Report struct {
	Collections []CollectionReport `json:"collections"`
	Counters    map[string]int64   `json:"counters"`
}

// Migrator copies legacy documents into the relational store.
//
// Each collection goes through four phases. Documents already keyed by an
// integer are copied under that ID. The relational counter is then raised
// to the highest of the legacy counter, the imported IDs and the integer
// references other collections hold, so renumbering continues past every
// ID the document store knows. Object-ID
// documents are inserted under freshly allocated IDs, references held by
// dependent collections are rewritten, and the object-ID documents are
// deleted. Every insert writes a ledger row in the same transaction, so a
// run that stops part way can be restarted: documents found in the ledger
// keep their ID and the later phases are repeated.
type Migrator struct {
	src    Source
	db     *gorm.DB
	seq    *sequence.Allocator
	logger *zap.Logger
}

// NewMigrator creates a Migrator.
func NewMigrator(src Source, db *gorm.DB, seq *sequence.Allocator, logger *zap.Logger) *Migrator {
	return &Migrator{src: src, db: db, seq: seq, logger: logger}
}

// Run migrates every collection in dependency order.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	rep := &Report{}
	for _, s := range steps {
		cr, err := m.migrate(ctx, s)
		if err != nil {
			return rep, fmt.Errorf("migrate %s: %w", s.collection, err)
		}
		rep.Collections = append(rep.Collections, *cr)
	}
	counters, err := m.seq.Snapshot(ctx)
	if err != nil {
		return rep, err
	}
	rep.Counters = counters
	return rep, nil
}

func (m *Migrator) migrate(ctx context.Context, s step) (*CollectionReport, error) {
	cr := &CollectionReport{
		Collection: s.collection,
		Skipped:    []string{},
		Mapping:    map[string]int64{},
	}

	numbered, err := m.src.FindNumbered(ctx, s.collection)
	if err != nil {
		return nil, err
	}
	floor, err := m.src.Counter(ctx, s.legacyCounter)
	if err != nil {
		return nil, err
	}
	// Integer references already in the source are legacy IDs. Keeping new
	// IDs above them means a rewritten reference can never be mistaken for
	// one.
	for _, dep := range s.dependents {
		n, err := m.src.MaxRef(ctx, dep.collection, dep.field)
		if err != nil {
			return nil, err
		}
		if n > floor {
			floor = n
		}
	}
	for _, doc := range numbered {
		if doc.Num > floor {
			floor = doc.Num
		}
		newID, resumed, err := m.insert(ctx, s, doc)
		if _, err := m.tally(cr, doc, newID, resumed, err); err != nil {
			return nil, err
		}
	}
	if err := m.seq.AtLeast(ctx, s.counter, floor); err != nil {
		return nil, err
	}
	cr.CounterFloor = floor

	docs, err := m.src.FindLegacy(ctx, s.collection)
	if err != nil {
		return nil, err
	}
	cr.Found = len(numbered) + len(docs)

	var done []string
	for _, doc := range docs {
		newID, resumed, err := m.insert(ctx, s, doc)
		ok, err := m.tally(cr, doc, newID, resumed, err)
		if err != nil {
			return nil, err
		}
		if ok {
			cr.Mapping[doc.ID] = newID
			done = append(done, doc.ID)
		}
	}

	for _, dep := range s.dependents {
		for _, oldID := range done {
			n, err := m.src.RewriteRef(ctx, dep.collection, dep.field, oldID, cr.Mapping[oldID])
			if err != nil {
				return nil, err
			}
			cr.RefsRewritten += n
		}
	}

	if cr.Deleted, err = m.src.Delete(ctx, s.collection, done); err != nil {
		return nil, err
	}
	m.logger.Info("legacy collection migrated",
		zap.String("collection", s.collection),
		zap.Int("found", cr.Found),
		zap.Int("imported", cr.Imported),
		zap.Int("migrated", cr.Migrated),
		zap.Int("resumed", cr.Resumed),
		zap.Int("skipped", len(cr.Skipped)),
		zap.Int64("counter_floor", floor))
	return cr, nil
}

// tally records the outcome of one insert. It reports whether the document
// is now in the relational store; documents that cannot be placed are
// skipped rather than failing the run.
func (m *Migrator) tally(cr *CollectionReport, doc Document, newID int64, resumed bool, err error) (bool, error) {
	if errors.Is(err, errDangling) || errors.Is(err, errIDTaken) {
		m.logger.Warn("skipping legacy document",
			zap.String("collection", cr.Collection),
			zap.String("legacy_id", doc.ID),
			zap.Error(err))
		cr.Skipped = append(cr.Skipped, doc.ID)
		metrics.LegacyDocumentsSkippedTotal.WithLabelValues(cr.Collection).Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	switch {
	case resumed:
		cr.Resumed++
	case doc.Num != 0:
		cr.Imported++
		metrics.LegacyDocumentsMigratedTotal.WithLabelValues(cr.Collection).Inc()
	default:
		cr.Migrated++
		metrics.LegacyDocumentsMigratedTotal.WithLabelValues(cr.Collection).Inc()
	}
	return true, nil
}

// insert stores doc unless the ledger shows an earlier run already did.
// Integer-keyed documents keep their ID; object-ID documents draw a new one.
func (m *Migrator) insert(ctx context.Context, s step, doc Document) (int64, bool, error) {
	var newID int64
	resumed := false
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, ok, err := lookup(tx, s.collection, doc.ID)
		if err != nil {
			return err
		}
		if ok {
			newID, resumed = id, true
			return nil
		}
		if doc.Num != 0 {
			var n int64
			if err := tx.Model(s.empty()).Where("id = ?", doc.Num).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %s %d", errIDTaken, s.collection, doc.Num)
			}
			newID = doc.Num
		} else if newID, err = m.seq.WithTx(tx).Next(ctx, s.counter); err != nil {
			return err
		}
		rec, err := s.build(tx, doc, newID)
		if err != nil {
			return err
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return tx.Create(&model.LegacyID{
			Collection: s.collection,
			LegacyID:   doc.ID,
			NewID:      newID,
		}).Error
	})
	return newID, resumed, err
}

func lookup(tx *gorm.DB, collection, legacyID string) (int64, bool, error) {
	var row model.LegacyID
	err := tx.Where("collection = ? AND legacy_id = ?", collection, legacyID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.NewID, true, nil
}

// imported reports whether id in collection was written by this migration,
// either as an integer-keyed document or as the new ID of a renumbered one.
func imported(tx *gorm.DB, collection string, id int64) (bool, error) {
	var n int64
	err := tx.Model(&model.LegacyID{}).
		Where("collection = ? AND new_id = ?", collection, id).
		Count(&n).Error
	return n > 0, err
}

// resolve turns a reference field into an integer ID of a row in target.
// Absent references return nil; references that lead nowhere fail with
// errDangling. Integer references are legacy-store IDs, so they only match
// rows this migration imported, never rows the relational store numbered on
// its own.
func resolve(tx *gorm.DB, doc Document, field, collection string, target any) (*int64, error) {
	var id int64
	switch v := doc.Fields[field].(type) {
	case nil:
		return nil, nil
	case Ref:
		newID, ok, err := lookup(tx, collection, string(v))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s -> %s %s", errDangling, field, collection, v)
		}
		id = newID
	case int64, float64:
		n, ok := integer(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s = %v", errDangling, field, v)
		}
		found, err := imported(tx, collection, n)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: %s -> %s %d not migrated", errDangling, field, collection, n)
		}
		id = n
	default:
		return nil, fmt.Errorf("%w: %s has type %T", errDangling, field, v)
	}

	var n int64
	if err := tx.Model(target).Where("id = ?", id).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s -> %s %d", errDangling, field, collection, id)
	}
	return &id, nil
}

func required(id *int64, field string) (int64, error) {
	if id == nil {
		return 0, fmt.Errorf("%w: %s missing", errDangling, field)
	}
	return *id, nil
}

func buildUser(_ *gorm.DB, doc Document, id int64) (any, error) {
	return &model.User{
		ID:           id,
		Name:         doc.str("nombre"),
		Email:        doc.str("email"),
		PasswordHash: doc.str("password"),
	}, nil
}

func buildHero(tx *gorm.DB, doc Document, id int64) (any, error) {
	owner, err := resolve(tx, doc, "usuario", CollUsers, &model.User{})
	if err != nil {
		return nil, err
	}
	return &model.Hero{
		ID:          id,
		Name:        doc.str("nombre"),
		Power:       doc.str("poder"),
		OwnerUserID: owner,
	}, nil
}

func buildPet(tx *gorm.DB, doc Document, id int64) (any, error) {
	owner, err := resolve(tx, doc, "usuario", CollUsers, &model.User{})
	if err != nil {
		return nil, err
	}
	age, _ := doc.num("edad")
	return &model.Pet{
		ID:          id,
		Name:        doc.str("nombre"),
		Type:        doc.str("tipo"),
		Age:         age,
		OwnerUserID: owner,
		Happiness:   pet.Clamp(doc.intOr("felicidad", 50)),
		Hunger:      pet.Clamp(doc.intOr("hambre", 0)),
		Illness:     doc.strPtr("enfermedad"),
		CustomItems: datatypes.JSONSlice[string](doc.strings("itemsCustom")),
		Alive:       doc.boolOr("viva", true),
	}, nil
}

// buildAdoption also records the hero as the pet's sponsor when the pet has
// none yet.
func buildAdoption(tx *gorm.DB, doc Document, id int64) (any, error) {
	owner, err := resolve(tx, doc, "usuario", CollUsers, &model.User{})
	if err != nil {
		return nil, err
	}
	petID, err := resolve(tx, doc, "mascota", CollPets, &model.Pet{})
	if err != nil {
		return nil, err
	}
	heroID, err := resolve(tx, doc, "heroe", CollHeroes, &model.Hero{})
	if err != nil {
		return nil, err
	}
	a := &model.Adoption{ID: id, Date: doc.timeOr("fecha", time.Now())}
	if a.OwnerUserID, err = required(owner, "usuario"); err != nil {
		return nil, err
	}
	if a.PetID, err = required(petID, "mascota"); err != nil {
		return nil, err
	}
	if a.HeroID, err = required(heroID, "heroe"); err != nil {
		return nil, err
	}
	err = tx.Model(&model.Pet{}).
		Where("id = ? AND hero_id IS NULL", a.PetID).
		Update("hero_id", a.HeroID).Error
	return a, err
}

func buildGameEvent(tx *gorm.DB, doc Document, id int64) (any, error) {
	petID, err := resolve(tx, doc, "mascota", CollPets, &model.Pet{})
	if err != nil {
		return nil, err
	}
	ev := &model.GameEvent{
		ID:             id,
		Action:         doc.str("accion"),
		Detail:         doc.strPtr("detalle"),
		Timestamp:      doc.timeOr("timestamp", time.Now()),
		HappinessAfter: doc.intOr("felicidad", 0),
		HungerAfter:    doc.intOr("hambre", 0),
		IllnessAfter:   doc.strPtr("enfermedad"),
	}
	if ev.PetID, err = required(petID, "mascota"); err != nil {
		return nil, err
	}
	if a, ok := pet.ParseAction(ev.Action); ok {
		ev.Action = string(a)
	}
	return ev, nil
}
