package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is a single authored article, optionally assigned to a group.
// There is deliberately no UpdatedAt: the publication timestamp is set once
// at creation and edits never touch it.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	GroupID   *uint     `gorm:"index" json:"group_id,omitempty"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Image     string    `gorm:"size:512" json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Group     *Group    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"group,omitempty"`
	Comments  []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`
}

// BeforeCreate pins the publication timestamp.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	return nil
}

// BeforeDelete drops the post's comments with it.
func (p *Post) BeforeDelete(tx *gorm.DB) error {
	return tx.Where("post_id = ?", p.ID).Delete(&Comment{}).Error
}

// RecentFirst orders listings newest-first. Equal timestamps fall back to
// insertion order so pagination stays stable at one-second resolution.
func RecentFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC, id ASC")
}
