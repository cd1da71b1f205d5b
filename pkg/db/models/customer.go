package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer represents the canonical identity entity. Entitlement state is never
// stored here; orders, licenses, and releases all live in external systems.
type Customer struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash     string     `gorm:"column:password_hash;not null"`
	DisplayName      string     `gorm:"column:display_name;not null;default:''"`
	SquareCustomerID string     `gorm:"column:square_customer_id;not null;default:''"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
