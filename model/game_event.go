package model

import "time"

// GameEvent is one entry of a pet's append-only action history. Rows are
// never updated or deleted by the API.
type GameEvent struct {
	ID             int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	PetID          int64     `gorm:"index:idx_event_pet;not null" json:"petId"`
	Action         string    `gorm:"size:16;not null" json:"action"`
	Detail         *string   `gorm:"size:255" json:"detail"`
	Timestamp      time.Time `gorm:"not null" json:"timestamp"`
	HappinessAfter int       `json:"happinessAfter"`
	HungerAfter    int       `json:"hungerAfter"`
	IllnessAfter   *string   `gorm:"size:32" json:"illnessAfter"`
}
