package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDisplayName is used when the identity provider supplies no name.
const DefaultDisplayName = "Anonymous"

type User struct {
	ID         uuid.UUID `json:"id" db:"id"`
	IdentityID string    `json:"identityId" db:"identity_id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	ImageURL   string    `json:"imageUrl" db:"image_url"`
	IsOnline   bool      `json:"isOnline" db:"is_online"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// Identity is the authenticated subject of a request as supplied by the
// external identity provider. A nil *Identity means the caller is anonymous.
type Identity struct {
	Subject    string `json:"sub"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	PictureURL string `json:"picture,omitempty"`
}

// DisplayName returns the identity's name or DefaultDisplayName.
func (i *Identity) DisplayName() string {
	if i == nil || i.Name == "" {
		return DefaultDisplayName
	}
	return i.Name
}
