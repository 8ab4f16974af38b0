package dto

import (
	"time"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

type MeResponse struct {
	User User `json:"user"`
}

type User struct {
	ID        model.ID   `json:"id"`
	Email     string     `json:"email,omitempty"`
	Name      string     `json:"name,omitempty"`
	Role      string     `json:"role,omitempty"`
	IssuedAt  *time.Time `json:"iat,omitempty"`
	ExpiresAt *time.Time `json:"exp,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
