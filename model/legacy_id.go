package model

import "time"

// LegacyID maps a pre-migration document identifier to the integer ID it was
// renumbered to. The ledger makes an interrupted migration resumable.
type LegacyID struct {
	Collection string    `gorm:"primaryKey;size:32" json:"collection"`
	LegacyID   string    `gorm:"primaryKey;size:64" json:"legacyId"`
	NewID      int64     `gorm:"not null;index" json:"newId"`
	MigratedAt time.Time `gorm:"autoCreateTime" json:"migratedAt"`
}

func (LegacyID) TableName() string { return "legacy_ids" }
