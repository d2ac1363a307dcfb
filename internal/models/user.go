package models

import (
	"time"
)

/** --------------------ENTITIES-------------------- */

// User is the account record. OTPHash/OTPExpiresAt back the one-time login
// code: expiry is a persisted timestamp checked at login, never an in-process
// timer, so a pending code survives restarts.
type User struct {
	ID           string     `gorm:"primaryKey;type:char(36)" json:"id"`
	Name         string     `gorm:"not null" json:"name"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	Password     string     `gorm:"not null" json:"-"`
	ProfilePic   string     `json:"profilePic"`
	About        string     `json:"about"`
	OTPHash      string     `json:"-"`
	OTPExpiresAt *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
}

/** -------------------- DTOs -------------------- */

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

type LoginResponse struct {
	AuthToken string       `json:"authtoken"`
	User      UserResponse `json:"user"`
}

type UserResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
	About      string `json:"about,omitempty"`
}

type UpdateProfileRequest struct {
	Name        string `json:"name"`
	About       string `json:"about"`
	ProfilePic  string `json:"profilePic"`
	OldPassword string `json:"oldpassword"`
	NewPassword string `json:"newpassword"`
}

type SendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// OnlineStatus answers the HTTP-polled presence query.
type OnlineStatus struct {
	UserID     string     `json:"userId"`
	IsOnline   bool       `json:"isOnline"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		About:      u.About,
	}
}
