package customers

import (
	"time"

	"github.com/google/uuid"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/db/models"
)

// CustomerDTO is the customer shape returned to clients.
type CustomerDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FromModel maps the persistence model to the transport DTO.
func FromModel(customer *models.Customer) *CustomerDTO {
	if customer == nil {
		return nil
	}
	return &CustomerDTO{
		ID:          customer.ID,
		Email:       customer.Email,
		DisplayName: customer.DisplayName,
		LastLoginAt: customer.LastLoginAt,
		CreatedAt:   customer.CreatedAt,
	}
}
