package model

// Counter holds the last identifier issued for one entity type.
// Seq only ever grows; identifiers are never handed out twice, even after the
// record that received one is deleted.
type Counter struct {
	Name string `gorm:"primaryKey;size:64" json:"name"`
	Seq  int64  `gorm:"not null" json:"seq"`
}

func (Counter) TableName() string { return "counters" }
