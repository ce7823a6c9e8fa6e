package models

import "gorm.io/gorm"

// Group is a topical category posts may be assigned to. The slug is the
// URL-facing identifier and must never change once linked from outside.
type Group struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:200;not null" json:"title"`
	Slug        string `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	Posts       []Post `json:"-"`
}

// BeforeDelete detaches the group from its posts instead of removing them.
func (g *Group) BeforeDelete(tx *gorm.DB) error {
	return tx.Model(&Post{}).Where("group_id = ?", g.ID).Update("group_id", nil).Error
}
