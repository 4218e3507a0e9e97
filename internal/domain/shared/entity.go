package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and timestamps every stored record has.
// Timestamps are UTC.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity assigns a fresh ID stamped with the current time
func NewBaseEntity() BaseEntity {
	return NewBaseEntityAt(time.Now())
}

// NewBaseEntityAt assigns a fresh ID stamped with at
func NewBaseEntityAt(at time.Time) BaseEntity {
	at = at.UTC()
	return BaseEntity{ID: uuid.New(), CreatedAt: at, UpdatedAt: at}
}

// Touch records a modification at at
func (e *BaseEntity) Touch(at time.Time) {
	e.UpdatedAt = at.UTC()
}

// IsNew reports whether the entity has not been assigned an ID yet
func (e *BaseEntity) IsNew() bool {
	return e.ID == uuid.Nil
}
