package pet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/heropets/server/cache"
	"github.com/heropets/server/config"
	"github.com/heropets/server/metrics"
	"github.com/heropets/server/model"
	"github.com/heropets/server/sequence"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Channel is the pub/sub channel a pet's game events are published on.
func Channel(petID int64) string {
	return "pet:" + strconv.FormatInt(petID, 10)
}

// CreateInput is the body of a pet creation. Omitted vitals take the
// configured defaults; Alive defaults to true.
type CreateInput struct {
	Name        string   `json:"name" binding:"required,max=64"`
	Type        string   `json:"type" binding:"required,max=32"`
	Age         *float64 `json:"age" binding:"required,gte=0"`
	Happiness   *int     `json:"happiness" binding:"omitempty,min=0,max=100"`
	Hunger      *int     `json:"hunger" binding:"omitempty,min=0,max=100"`
	Illness     *string  `json:"illness"`
	CustomItems []string `json:"customItems"`
	Alive       *bool    `json:"alive"`
}

// UpdateInput is a partial pet update. Nil fields are left unchanged;
// Illness can also be cleared with an explicit null.
type UpdateInput struct {
	Name        *string        `json:"name" binding:"omitempty,min=1,max=64"`
	Type        *string        `json:"type" binding:"omitempty,min=1,max=32"`
	Age         *float64       `json:"age" binding:"omitempty,gte=0"`
	Happiness   *int           `json:"happiness" binding:"omitempty,min=0,max=100"`
	Hunger      *int           `json:"hunger" binding:"omitempty,min=0,max=100"`
	Illness     NullableString `json:"illness"`
	CustomItems []string       `json:"customItems"`
	Alive       *bool          `json:"alive"`
}

// NullableString tells an absent JSON field apart from an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

// SetTo returns a NullableString holding v; nil means null.
func SetTo(v *string) NullableString {
	return NullableString{Set: true, Value: v}
}

func (n *NullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// Outcome is what an applied action produced.
type Outcome struct {
	Result
	Pet   *model.Pet
	Event *model.GameEvent
}

// Service persists pets and runs game actions against them. Every read and
// write is scoped to the calling user.
type Service struct {
	db       *gorm.DB
	seq      *sequence.Allocator
	ps       cache.PubSub
	defaults config.PetsConfig
	logger   *zap.Logger
}

// NewService creates a pet Service. ps may be nil, in which case events are
// not published.
func NewService(db *gorm.DB, seq *sequence.Allocator, ps cache.PubSub, defaults config.PetsConfig, logger *zap.Logger) *Service {
	return &Service{db: db, seq: seq, ps: ps, defaults: defaults, logger: logger}
}

func checkIllness(illness *string) error {
	if illness != nil && !slices.Contains(Illnesses, *illness) {
		return fmt.Errorf("%w: %q", ErrInvalidIllness, *illness)
	}
	return nil
}

func items(in []string) datatypes.JSONSlice[string] {
	if in == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](in)
}

// Create stores a new pet owned by ownerID.
func (svc *Service) Create(ctx context.Context, ownerID int64, in CreateInput) (*model.Pet, error) {
	if err := checkIllness(in.Illness); err != nil {
		return nil, err
	}
	p := &model.Pet{
		Name:        in.Name,
		Type:        in.Type,
		Age:         *in.Age,
		OwnerUserID: &ownerID,
		Happiness:   svc.defaults.DefaultHappiness,
		Hunger:      svc.defaults.DefaultHunger,
		Illness:     in.Illness,
		CustomItems: items(in.CustomItems),
		Alive:       true,
	}
	if in.Happiness != nil {
		p.Happiness = *in.Happiness
	}
	if in.Hunger != nil {
		p.Hunger = *in.Hunger
	}
	if in.Alive != nil {
		p.Alive = *in.Alive
	}

	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := svc.seq.WithTx(tx).Next(ctx, sequence.Pets)
		if err != nil {
			return err
		}
		p.ID = id
		return tx.Create(p).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create pet: %w", err)
	}
	svc.logger.Info("pet created", zap.Int64("pet_id", p.ID), zap.Int64("user_id", ownerID))
	return p, nil
}

// ListOwned returns ownerID's pets in ID order.
func (svc *Service) ListOwned(ctx context.Context, ownerID int64) ([]model.Pet, error) {
	pets := []model.Pet{}
	err := svc.db.WithContext(ctx).Scopes(model.OwnedBy(ownerID)).Order("id").Find(&pets).Error
	return pets, err
}

// ListAll returns every pet regardless of owner.
func (svc *Service) ListAll(ctx context.Context) ([]model.Pet, error) {
	pets := []model.Pet{}
	err := svc.db.WithContext(ctx).Order("id").Find(&pets).Error
	return pets, err
}

// load fetches a pet and applies the ownership guard.
func load(tx *gorm.DB, ownerID, petID int64) (*model.Pet, error) {
	var p model.Pet
	err := tx.Where("id = ?", petID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !model.Authorize(ownerID, &p) {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

// Get returns one of ownerID's pets.
func (svc *Service) Get(ctx context.Context, ownerID, petID int64) (*model.Pet, error) {
	return load(svc.db.WithContext(ctx), ownerID, petID)
}

// save writes p's mutable columns if the stored version still matches
// p.Version, then reloads it.
func save(tx *gorm.DB, ownerID int64, p *model.Pet) error {
	res := tx.Model(&model.Pet{}).
		Scopes(model.OwnedBy(ownerID)).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]any{
			"name":         p.Name,
			"type":         p.Type,
			"age":          p.Age,
			"happiness":    p.Happiness,
			"hunger":       p.Hunger,
			"illness":      p.Illness,
			"custom_items": items(p.CustomItems),
			"alive":        p.Alive,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrConflict
	}
	return tx.Where("id = ?", p.ID).Take(p).Error
}

// Update applies a partial update to one of ownerID's pets.
func (svc *Service) Update(ctx context.Context, ownerID, petID int64, in UpdateInput) (*model.Pet, error) {
	if err := checkIllness(in.Illness.Value); err != nil {
		return nil, err
	}
	var p *model.Pet
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = load(tx, ownerID, petID); err != nil {
			return err
		}
		if in.Name != nil {
			p.Name = *in.Name
		}
		if in.Type != nil {
			p.Type = *in.Type
		}
		if in.Age != nil {
			p.Age = *in.Age
		}
		if in.Happiness != nil {
			p.Happiness = *in.Happiness
		}
		if in.Hunger != nil {
			p.Hunger = *in.Hunger
		}
		if in.Illness.Set {
			p.Illness = in.Illness.Value
		}
		if in.CustomItems != nil {
			p.CustomItems = in.CustomItems
		}
		if in.Alive != nil {
			p.Alive = *in.Alive
		}
		return save(tx, ownerID, p)
	})
	if err != nil {
		return nil, fmt.Errorf("update pet %d: %w", petID, err)
	}
	return p, nil
}

// Delete removes one of ownerID's pets. Its game events are kept.
func (svc *Service) Delete(ctx context.Context, ownerID, petID int64) error {
	res := svc.db.WithContext(ctx).Scopes(model.OwnedBy(ownerID)).
		Where("id = ?", petID).Delete(&model.Pet{})
	if res.Error != nil {
		return fmt.Errorf("delete pet %d: %w", petID, res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	svc.logger.Info("pet deleted", zap.Int64("pet_id", petID), zap.Int64("user_id", ownerID))
	return nil
}

// Apply runs a game action on one of ownerID's pets. The new vitals and the
// history event commit together; a concurrent write to the same pet makes
// the call fail with model.ErrConflict instead of losing either update.
func (svc *Service) Apply(ctx context.Context, ownerID, petID int64, action Action, arg string) (*Outcome, error) {
	if action == ActionDress {
		arg = strings.TrimSpace(arg)
	}
	out := &Outcome{}
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := load(tx, ownerID, petID)
		if err != nil {
			return err
		}
		next, res, err := Apply(VitalsOf(p), action, arg)
		if err != nil {
			return err
		}
		next.WriteTo(p)
		if err := save(tx, ownerID, p); err != nil {
			return err
		}

		id, err := svc.seq.WithTx(tx).Next(ctx, sequence.GameEvents)
		if err != nil {
			return err
		}
		ev := &model.GameEvent{
			ID:             id,
			PetID:          p.ID,
			Action:         string(action),
			Timestamp:      time.Now(),
			HappinessAfter: p.Happiness,
			HungerAfter:    p.Hunger,
			IllnessAfter:   p.Illness,
		}
		if action == ActionDress || action == ActionSicken {
			ev.Detail = &arg
		}
		if err := tx.Create(ev).Error; err != nil {
			return err
		}
		out.Result, out.Pet, out.Event = res, p, ev
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			metrics.PetActionConflictsTotal.Inc()
		}
		return nil, fmt.Errorf("%s pet %d: %w", action, petID, err)
	}
	metrics.PetActionsTotal.WithLabelValues(string(action)).Inc()

	svc.logger.Info("pet action",
		zap.Int64("pet_id", petID),
		zap.Int64("user_id", ownerID),
		zap.String("action", string(action)),
		zap.Int("happiness", out.Pet.Happiness),
		zap.Int("hunger", out.Pet.Hunger))
	svc.publish(ctx, out.Event)
	return out, nil
}

func (svc *Service) publish(ctx context.Context, ev *model.GameEvent) {
	if svc.ps == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := svc.ps.Publish(ctx, Channel(ev.PetID), string(payload)); err != nil {
		metrics.PetEventPublishErrorsTotal.Inc()
		svc.logger.Warn("publish pet event failed", zap.Int64("pet_id", ev.PetID), zap.Error(err))
	}
}

// Status returns the public projection of one of ownerID's pets.
func (svc *Service) Status(ctx context.Context, ownerID, petID int64) (Status, error) {
	p, err := svc.Get(ctx, ownerID, petID)
	if err != nil {
		return Status{}, err
	}
	return StatusOf(p), nil
}

// History returns a pet's status and its events, oldest first.
func (svc *Service) History(ctx context.Context, ownerID, petID int64) (*History, error) {
	p, err := svc.Get(ctx, ownerID, petID)
	if err != nil {
		return nil, err
	}
	events := []model.GameEvent{}
	if err := svc.db.WithContext(ctx).Where("pet_id = ?", p.ID).Order("id").Find(&events).Error; err != nil {
		return nil, err
	}
	return &History{Status: StatusOf(p), Events: events}, nil
}

// ListByHero returns the status of every pet sponsored by heroID.
func (svc *Service) ListByHero(ctx context.Context, heroID int64) ([]Status, error) {
	db := svc.db.WithContext(ctx)
	var hero model.Hero
	if err := db.Where("id = ?", heroID).Take(&hero).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	var pets []model.Pet
	if err := db.Where("hero_id = ?", heroID).Order("id").Find(&pets).Error; err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(pets))
	for i := range pets {
		out = append(out, StatusOf(&pets[i]))
	}
	return out, nil
}

// Subscribe streams the game events of one of ownerID's pets.
func (svc *Service) Subscribe(ctx context.Context, ownerID, petID int64) (<-chan *cache.Message, func(), error) {
	if svc.ps == nil {
		return nil, nil, errors.New("pet events: no pub/sub configured")
	}
	if _, err := svc.Get(ctx, ownerID, petID); err != nil {
		return nil, nil, err
	}
	return svc.ps.Subscribe(ctx, Channel(petID))
}
