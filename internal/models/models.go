package models

import (
	"time"
)

type User struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"  json:"-"`
	UID             string    `gorm:"uniqueIndex;size:36;not null" json:"uid"`
	Email           string    `gorm:"uniqueIndex;not null"      json:"email"`
	Name            string    `gorm:"not null"                  json:"name"`
	PasswordHash    string    `gorm:"not null"                  json:"-"`
	Role            string    `gorm:"not null;default:user"     json:"-"`
	IsEmailVerified bool      `gorm:"default:false"             json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Session rows store SHA-256 digests of the issued tokens, never the tokens themselves.
type Session struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID             uint      `gorm:"index;not null"           json:"-"`
	AccessToken        string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	RefreshToken       string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	AccessTokenExpires time.Time `gorm:"index;not null"           json:"-"`
	RefreshTokenDate   time.Time `gorm:"index;not null"           json:"-"`
}

func All() []any {
	return []any{&User{}, &Session{}}
}
