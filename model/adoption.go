package model

import "time"

// Adoption records a hero sponsoring one of the owner's pets.
type Adoption struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OwnerUserID int64     `gorm:"index:idx_adoption_owner;not null" json:"ownerUserId"`
	PetID       int64     `gorm:"index:idx_adoption_pet;not null" json:"petId"`
	HeroID      int64     `gorm:"index:idx_adoption_hero;not null" json:"heroId"`
	Date        time.Time `gorm:"not null" json:"date"`
}

// OwnerID implements Owned.
func (a *Adoption) OwnerID() *int64 {
	if a == nil {
		return nil
	}
	return &a.OwnerUserID
}
