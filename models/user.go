package models

import "time"

const UserTable = "usuarios"
const RoleTable = "roles"

type User struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"size:100;not null" json:"name"`
	Age     int    `gorm:"not null" json:"age"`
	Phone   string `gorm:"size:20;not null" json:"phone"`
	Address string `gorm:"size:255;not null" json:"address"`

	// Stored lower-cased; uniqueness is enforced by the LOWER(email) index
	// created in db.Migrate.
	Email        string `gorm:"size:150;not null;index" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	RoleID       uint   `gorm:"index;not null" json:"role_id"`

	AvatarURL  *string    `gorm:"size:500" json:"avatar_url,omitempty"`
	LastSeenAt *time.Time `gorm:"index" json:"last_seen_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return UserTable }

type Role struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

func (Role) TableName() string { return RoleTable }
