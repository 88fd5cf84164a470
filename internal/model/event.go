package model

import "time"

// Board event types published after successful mutations.
const (
	EventBoardCreated = "board.created"
	EventBoardUpdated = "board.updated"
	EventBoardDeleted = "board.deleted"
	EventMemberAdded  = "member.added"
	EventListCreated  = "list.created"
	EventListUpdated  = "list.updated"
	EventListDeleted  = "list.deleted"
	EventListMoved    = "list.moved"
	EventCardCreated  = "card.created"
	EventCardUpdated  = "card.updated"
	EventCardDeleted  = "card.deleted"
	EventCardMoved    = "card.moved"
	EventCardAssigned = "card.assigned"
)

// BoardEvent describes a change on a board. It is published to the
// message broker and streamed to connected board members.
type BoardEvent struct {
	Type       string    `json:"type"`
	BoardID    uint64    `json:"boardId"`
	ListID     uint64    `json:"listId,omitempty"`
	CardID     uint64    `json:"cardId,omitempty"`
	ActorID    uint64    `json:"actorId"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
