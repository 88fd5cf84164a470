package model

import "time"

// Card is a unit of work within a list (`cards` table). Labels are stored
// as a JSON array; AssignedTo comes from `card_assignees`.
type Card struct {
	ID            uint64          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	ListID        uint64          `json:"listId"`
	Position      int             `json:"position"`
	DueDate       *time.Time      `json:"dueDate,omitempty"`
	Labels        []string        `json:"labels"`
	AssignedTo    []uint64        `json:"assignedTo"`
	AssignedUsers []MemberSummary `json:"assignedUsers,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CardPatch carries the optional fields of a card update. Nil means
// "leave unchanged".
type CardPatch struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	Labels       *[]string
	AssignedTo   *[]uint64
	ListID       *uint64
}

// NewCard holds the fields accepted when creating a card.
type NewCard struct {
	Title       string
	Description string
	DueDate     *time.Time
	Labels      []string
	AssignedTo  []uint64
}

// CardReorder is a client-submitted move of one card. Orders are the full
// card id sequences the client expects after the move; versions, when set,
// must match the stored list versions.
type CardReorder struct {
	CardID             uint64
	SourceListID       uint64
	DestinationListID  uint64
	SourceOrder        []uint64
	DestinationOrder   []uint64
	SourceVersion      *int64
	DestinationVersion *int64
}

// CrossList reports whether the card changes lists.
func (r CardReorder) CrossList() bool { return r.SourceListID != r.DestinationListID }

// ReorderResult holds the lists touched by a reorder with their new card
// orders and versions. Destination is nil for a move within one list.
type ReorderResult struct {
	Source      List  `json:"source"`
	Destination *List `json:"destination,omitempty"`
}
