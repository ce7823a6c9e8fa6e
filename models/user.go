package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an authenticated identity. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255" json:"email,omitempty"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Provider     string    `gorm:"size:32" json:"-"`
	ProviderID   string    `gorm:"size:255" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	Posts        []Post    `json:"-"`
	Comments     []Comment `json:"-"`
}

// BeforeCreate ensures the registration timestamp is set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	return nil
}

// BeforeDelete cascades: the user's posts go away together with every comment
// under them, and so do comments the user left on other posts. Done in the
// hook so the behavior is identical on MySQL and SQLite.
func (u *User) BeforeDelete(tx *gorm.DB) error {
	var postIDs []uint
	if err := tx.Model(&Post{}).Where("user_id = ?", u.ID).Pluck("id", &postIDs).Error; err != nil {
		return err
	}
	if len(postIDs) > 0 {
		if err := tx.Where("post_id IN ?", postIDs).Delete(&Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", u.ID).Delete(&Post{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("user_id = ?", u.ID).Delete(&Comment{}).Error
}
