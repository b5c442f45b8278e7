package model

import "gorm.io/gorm"

// Owned is a record bound to the user that created it.
type Owned interface {
	OwnerID() *int64
}

// Authorize reports whether userID owns rec. Unowned records belong to nobody.
func Authorize(userID int64, rec Owned) bool {
	if rec == nil {
		return false
	}
	owner := rec.OwnerID()
	return owner != nil && *owner == userID
}

// OwnedBy scopes a query to rows owned by userID, so a read, update or delete
// checks ownership in the same statement that touches the row.
func OwnedBy(userID int64) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_user_id = ?", userID)
	}
}
