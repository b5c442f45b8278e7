package model

import (
	"time"

	"gorm.io/datatypes"
)

// Pet is the single persisted pet representation. Vitals are only changed by
// the pet game engine or a direct owner update; Version increments on every
// write and guards concurrent updates.
type Pet struct {
	ID          int64                       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string                      `gorm:"size:64;not null" json:"name"`
	Type        string                      `gorm:"size:32;not null" json:"type"`
	Age         float64                     `gorm:"not null" json:"age"`
	OwnerUserID *int64                      `gorm:"index:idx_pet_owner" json:"ownerUserId"`
	HeroID      *int64                      `gorm:"index:idx_pet_hero" json:"heroId"` // sponsor set by an adoption
	Happiness   int                         `gorm:"not null" json:"happiness"`
	Hunger      int                         `gorm:"not null" json:"hunger"`
	Illness     *string                     `gorm:"size:32" json:"illness"`
	CustomItems datatypes.JSONSlice[string] `json:"customItems"`
	Alive       bool                        `gorm:"not null" json:"alive"`
	Version     int64                       `gorm:"not null" json:"-"`
	CreatedAt   time.Time                   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time                   `gorm:"autoUpdateTime" json:"updatedAt"`
}

// OwnerID implements Owned.
func (p *Pet) OwnerID() *int64 {
	if p == nil {
		return nil
	}
	return p.OwnerUserID
}
