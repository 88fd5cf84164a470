package model

import "time"

// Board represents a shared workspace as stored in the `boards` table.
// Membership lives in `board_members`; Members is filled by the
// repository when the board is loaded.
//
// Fields:
//
//	ID        – primary key identifier.
//	Title     – required display title.
//	Color     – optional label colour.
//	Position  – user-assigned sort key among the caller's boards.
//	CreatedBy – owning user, immutable after creation.
//	Members   – user ids with access; always contains CreatedBy.
//	Version   – bumped whenever the board's lists are added, removed or reordered.
type Board struct {
	ID        uint64    `json:"id"`        // boards.id
	Title     string    `json:"title"`     // boards.title
	Color     string    `json:"color"`     // boards.color
	Position  int       `json:"position"`  // boards.position
	CreatedBy uint64    `json:"createdBy"` // boards.created_by
	Members   []uint64  `json:"members"`   // board_members.user_id
	Version   int64     `json:"version"`   // boards.version
	CreatedAt time.Time `json:"createdAt"` // boards.created_at
	UpdatedAt time.Time `json:"updatedAt"` // boards.updated_at
}

// HasMember reports whether userID is part of the board.
func (b *Board) HasMember(userID uint64) bool {
	for _, m := range b.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// BoardPosition is one entry of a bulk board reposition request.
type BoardPosition struct {
	ID       uint64 `json:"id"`
	Position int    `json:"position"`
}

// BoardPatch carries the optional fields of a board update. A non-nil
// Members replaces the member set.
type BoardPatch struct {
	Title   *string
	Color   *string
	Members *[]uint64
}
