// Package adoption pairs a user's pets with sponsoring heroes. A pet has at
// most one sponsor at a time.
package adoption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heropets/server/metrics"
	"github.com/heropets/server/model"
	"github.com/heropets/server/sequence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrAlreadyAdopted is returned when the pet already has a sponsoring hero.
var ErrAlreadyAdopted = errors.New("pet is already adopted")

type CreateInput struct {
	PetID  int64      `json:"petId" binding:"required,gt=0"`
	HeroID int64      `json:"heroId" binding:"required,gt=0"`
	Date   *time.Time `json:"date"`
}

// UpdateInput changes an adoption. Nil fields are left unchanged.
type UpdateInput struct {
	PetID  *int64     `json:"petId" binding:"omitempty,gt=0"`
	HeroID *int64     `json:"heroId" binding:"omitempty,gt=0"`
	Date   *time.Time `json:"date"`
}

type PetSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type HeroSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Power string `json:"power"`
}

// View is an adoption with the pet and hero it links. Either may be nil if
// the record was deleted after the adoption was made.
type View struct {
	model.Adoption
	Pet  *PetSummary  `json:"pet"`
	Hero *HeroSummary `json:"hero"`
}

// Service manages adoptions.
type Service struct {
	db     *gorm.DB
	seq    *sequence.Allocator
	logger *zap.Logger
}

// NewService creates an adoption Service.
func NewService(db *gorm.DB, seq *sequence.Allocator, logger *zap.Logger) *Service {
	return &Service{db: db, seq: seq, logger: logger}
}

func requireHero(tx *gorm.DB, heroID int64) error {
	var n int64
	if err := tx.Model(&model.Hero{}).Where("id = ?", heroID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("hero %d: %w", heroID, model.ErrNotFound)
	}
	return nil
}

// claim assigns heroID as the sponsor of one of ownerID's pets. The check
// and the write are one statement, so two concurrent claims on the same pet
// cannot both succeed.
func claim(tx *gorm.DB, ownerID, petID, heroID int64) error {
	var p model.Pet
	err := tx.Where("id = ?", petID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !model.Authorize(ownerID, &p)) {
		return fmt.Errorf("pet %d: %w", petID, model.ErrNotFound)
	}
	if err != nil {
		return err
	}
	res := tx.Model(&model.Pet{}).
		Scopes(model.OwnedBy(ownerID)).
		Where("id = ? AND hero_id IS NULL", petID).
		Updates(map[string]any{"hero_id": heroID, "version": gorm.Expr("version + 1")})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		metrics.AdoptionConflictsTotal.Inc()
		return ErrAlreadyAdopted
	}
	return nil
}

// release clears the sponsor of petID if it is still heroID.
func release(tx *gorm.DB, petID, heroID int64) error {
	return tx.Model(&model.Pet{}).
		Where("id = ? AND hero_id = ?", petID, heroID).
		Updates(map[string]any{"hero_id": nil, "version": gorm.Expr("version + 1")}).Error
}

// Create records heroID adopting one of ownerID's pets.
func (svc *Service) Create(ctx context.Context, ownerID int64, in CreateInput) (*model.Adoption, error) {
	a := &model.Adoption{
		OwnerUserID: ownerID,
		PetID:       in.PetID,
		HeroID:      in.HeroID,
		Date:        time.Now(),
	}
	if in.Date != nil {
		a.Date = *in.Date
	}
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireHero(tx, in.HeroID); err != nil {
			return err
		}
		if err := claim(tx, ownerID, in.PetID, in.HeroID); err != nil {
			return err
		}
		id, err := svc.seq.WithTx(tx).Next(ctx, sequence.Adoptions)
		if err != nil {
			return err
		}
		a.ID = id
		return tx.Create(a).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create adoption: %w", err)
	}
	svc.logger.Info("pet adopted",
		zap.Int64("adoption_id", a.ID),
		zap.Int64("pet_id", a.PetID),
		zap.Int64("hero_id", a.HeroID))
	return a, nil
}

func load(tx *gorm.DB, ownerID, id int64) (*model.Adoption, error) {
	var a model.Adoption
	err := tx.Where("id = ?", id).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !model.Authorize(ownerID, &a) {
		return nil, model.ErrNotFound
	}
	return &a, nil
}

// List returns ownerID's adoptions with the linked pet and hero.
func (svc *Service) List(ctx context.Context, ownerID int64) ([]View, error) {
	db := svc.db.WithContext(ctx)
	var adoptions []model.Adoption
	if err := db.Scopes(model.OwnedBy(ownerID)).Order("id").Find(&adoptions).Error; err != nil {
		return nil, err
	}
	if len(adoptions) == 0 {
		return []View{}, nil
	}

	petIDs := make([]int64, 0, len(adoptions))
	heroIDs := make([]int64, 0, len(adoptions))
	for _, a := range adoptions {
		petIDs = append(petIDs, a.PetID)
		heroIDs = append(heroIDs, a.HeroID)
	}
	var pets []model.Pet
	if err := db.Where("id IN ?", petIDs).Find(&pets).Error; err != nil {
		return nil, err
	}
	var heroes []model.Hero
	if err := db.Where("id IN ?", heroIDs).Find(&heroes).Error; err != nil {
		return nil, err
	}
	petByID := make(map[int64]*PetSummary, len(pets))
	for _, p := range pets {
		petByID[p.ID] = &PetSummary{ID: p.ID, Name: p.Name, Type: p.Type}
	}
	heroByID := make(map[int64]*HeroSummary, len(heroes))
	for _, h := range heroes {
		heroByID[h.ID] = &HeroSummary{ID: h.ID, Name: h.Name, Power: h.Power}
	}

	out := make([]View, 0, len(adoptions))
	for _, a := range adoptions {
		out = append(out, View{Adoption: a, Pet: petByID[a.PetID], Hero: heroByID[a.HeroID]})
	}
	return out, nil
}

// Update changes one of ownerID's adoptions. Moving it to another pet or
// hero releases the old pet and claims the new one under the same rule as
// Create.
func (svc *Service) Update(ctx context.Context, ownerID, id int64, in UpdateInput) (*model.Adoption, error) {
	var a *model.Adoption
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if a, err = load(tx, ownerID, id); err != nil {
			return err
		}
		petID, heroID := a.PetID, a.HeroID
		if in.PetID != nil {
			petID = *in.PetID
		}
		if in.HeroID != nil {
			heroID = *in.HeroID
		}
		if petID != a.PetID || heroID != a.HeroID {
			if err := requireHero(tx, heroID); err != nil {
				return err
			}
			if err := release(tx, a.PetID, a.HeroID); err != nil {
				return err
			}
			if err := claim(tx, ownerID, petID, heroID); err != nil {
				return err
			}
			a.PetID, a.HeroID = petID, heroID
		}
		if in.Date != nil {
			a.Date = *in.Date
		}
		return tx.Model(a).Select("pet_id", "hero_id", "date").Updates(a).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update adoption %d: %w", id, err)
	}
	return a, nil
}

// Delete removes one of ownerID's adoptions and frees the pet for another
// sponsor.
func (svc *Service) Delete(ctx context.Context, ownerID, id int64) error {
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := load(tx, ownerID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(a).Error; err != nil {
			return err
		}
		return release(tx, a.PetID, a.HeroID)
	})
	if err != nil {
		return fmt.Errorf("delete adoption %d: %w", id, err)
	}
	svc.logger.Info("adoption deleted", zap.Int64("adoption_id", id), zap.Int64("user_id", ownerID))
	return nil
}
