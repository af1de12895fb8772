package dto

import (
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/types"
)

type UserLight struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Role  types.Role `json:"role"`
}

type User struct {
	UserLight
	Blocked   bool           `json:"blocked"`
	IsActive  bool           `json:"isActive"`
	Language  types.Language `json:"language"`
	Theme     types.Theme    `json:"theme"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	LastLogin *time.Time     `json:"lastLogin,omitempty" extensions:"x-nullable"`
}

type LoginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	CaptchaPayload string `json:"captchaPayload,omitempty"`
}

type RegisterRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	Name           string `json:"name" validate:"required,personName"`
	CaptchaPayload string `json:"captchaPayload,omitempty"`
}

type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
}

type UserUpdateRequest struct {
	Name     *string         `json:"name,omitempty" validate:"omitempty,personName"`
	Language *types.Language `json:"language,omitempty"`
	Theme    *types.Theme    `json:"theme,omitempty"`
}

type RoleRequest struct {
	Role types.Role `json:"role"`
}

type BlockRequest struct {
	Blocked bool `json:"blocked"`
}
