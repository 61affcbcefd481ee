package models

import (
	"strings"
	"time"
)

// Card is a versioned team work item. RowVersion is owned by the store and
// changes on every write.
type Card struct {
	ID          int64
	TeamID      int64
	Title       string
	Description string
	Order       int
	OwnerID     int64
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedBy   *int64
	UpdatedAt   *time.Time
	IsActive    bool
	RowVersion  []byte
	Labels      []Label
}

type CreateCardRequest struct {
	TeamID      int64
	UserID      int64
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	OwnerID     *int64 `json:"ownerId"`
}

// UpdateCardRequest carries a partial update; nil fields are left unchanged.
type UpdateCardRequest struct {
	TeamID      int64
	CardID      int64
	UserID      int64
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
	OwnerID     *int64  `json:"ownerId"`
}

// Empty reports whether no field would change. A whitespace-only title is
// not a change.
func (r *UpdateCardRequest) Empty() bool {
	return !r.HasTitle() && r.Description == nil && r.Order == nil && r.OwnerID == nil
}

// HasTitle reports whether the request carries a non-blank title.
func (r *UpdateCardRequest) HasTitle() bool {
	return r.Title != nil && strings.TrimSpace(*r.Title) != ""
}
