package model

import "time"

// List is a board column stored in the `lists` table. Cards holds the
// ids of the list's cards ordered by position; it is derived from the
// cards table on read and never written directly.
type List struct {
	ID        uint64    `json:"id"`        // lists.id
	Title     string    `json:"title"`     // lists.title
	BoardID   uint64    `json:"boardId"`   // lists.board_id
	Position  int       `json:"position"`  // lists.position
	Version   int64     `json:"version"`   // lists.version
	Cards     []uint64  `json:"cards"`     // derived from cards.position
	CreatedAt time.Time `json:"createdAt"` // lists.created_at
	UpdatedAt time.Time `json:"updatedAt"` // lists.updated_at
}

// ListWithCards is a list annotated with its full cards, as returned by
// the board view.
type ListWithCards struct {
	List
	Cards []Card `json:"cards"`
}

// ColumnMove is the outcome of moving a list within its board: the board's
// lists in their new order, the new board version and the index the list
// was taken from.
type ColumnMove struct {
	Lists        []List `json:"lists"`
	BoardVersion int64  `json:"boardVersion"`
	FromIndex    int    `json:"fromIndex"`
}
