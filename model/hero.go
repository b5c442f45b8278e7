package model

// Hero is a superhero that can sponsor pets. Heroes are public records;
// OwnerUserID only remembers who created one, when known.
type Hero struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string `gorm:"size:64;not null" json:"name"`
	Power       string `gorm:"size:128;not null" json:"power"`
	OwnerUserID *int64 `json:"ownerUserId"`
}
