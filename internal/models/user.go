package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// User is the profile kept next to the Firebase account
type User struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FirebaseUID string    `json:"firebase_uid" gorm:"size:128;uniqueIndex"`
	Name        string    `json:"name"`
	Email       string    `json:"email" gorm:"uniqueIndex"`
	Bio         string    `json:"bio"`
	PhotoURL    string    `json:"photo_url"`
	// SessionVersion is bumped on sign-out; tokens carrying an older value are rejected
	SessionVersion uint      `json:"-" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"-"`
}

// UserCompact is the public subset of a profile
type UserCompact struct {
	ID          uint   `json:"id"`
	FirebaseUID string `json:"firebase_uid"`
	Name        string `json:"name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// ToCompact strips private fields
func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:          u.ID,
		FirebaseUID: u.FirebaseUID,
		Name:        u.Name,
		PhotoURL:    u.PhotoURL,
	}
}

// SignupRequest creates the Firebase account and its profile
type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// UpdateProfileRequest edits the caller's profile. Empty fields are left alone.
type UpdateProfileRequest struct {
	Name        string  `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=300"`
	PhotoURL    *string `json:"photo_url,omitempty" validate:"omitempty,url"`
	NewPassword string  `json:"new_password,omitempty" validate:"omitempty,min=6"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID      uint   `json:"user_id"`
	FirebaseUID string `json:"firebase_uid"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	// SessionVersion must match the profile's for the token to be accepted
	SessionVersion uint `json:"session_version"`
	jwt.RegisteredClaims
}
