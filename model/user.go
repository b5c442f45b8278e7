package model

import "time"

// User is a registered API account. Its ID comes from the "users" counter.
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name         string    `gorm:"size:64;not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;size:128;not null" json:"email"`
	PasswordHash string    `gorm:"size:72;not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}
