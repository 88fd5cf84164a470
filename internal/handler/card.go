package handler

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/apperr"
	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/service"
)

// CardHandler serves card endpoints.
type CardHandler struct {
	Cards *service.CardService
}

func NewCardHandler(cards *service.CardService) *CardHandler {
	return &CardHandler{Cards: cards}
}

// ----- DTOs -----

type createCardReq struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Labels      []string   `json:"labels"`
	AssignedTo  []uint64   `json:"assignedTo"`
}

// updateCardReq keeps dueDate raw so an explicit null clears it.
type updateCardReq struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	DueDate     json.RawMessage `json:"dueDate"`
	Labels      *[]string       `json:"labels"`
	AssignedTo  *[]uint64       `json:"assignedTo"`
	ListID      *uint64         `json:"listId"`
}

type moveTaskReq struct {
	SourceListID    uint64   `json:"sourceListId"`
	TargetListID    uint64   `json:"targetListId"`
	SourceCardOrder []uint64 `json:"sourceCardOrder"`
	TargetCardOrder []uint64 `json:"targetCardOrder"`
	SourceVersion   *int64   `json:"sourceVersion"`
	TargetVersion   *int64   `json:"targetVersion"`
}

type reorderReq struct {
	SourceListID         uint64   `json:"sourceListId"`
	DestinationListID    uint64   `json:"destinationListId"`
	SourceCardOrder      []uint64 `json:"sourceCardOrder"`
	DestinationCardOrder []uint64 `json:"destinationCardOrder"`
	SourceVersion        *int64   `json:"sourceVersion"`
	DestinationVersion   *int64   `json:"destinationVersion"`
}

type assignReq struct {
	CardID  uint64   `json:"cardId"`
	UserIDs []uint64 `json:"userIds"`
}

func (r updateCardReq) patch() (model.CardPatch, error) {
	p := model.CardPatch{
		Title:       r.Title,
		Description: r.Description,
		Labels:      r.Labels,
		AssignedTo:  r.AssignedTo,
		ListID:      r.ListID,
	}
	// absent keeps the date, null clears it, anything else must parse
	switch raw := bytes.TrimSpace(r.DueDate); {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		p.ClearDueDate = true
	default:
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return p, apperr.InvalidArgument("Invalid due date")
		}
		p.DueDate = &t
	}
	return p, nil
}

func (h *CardHandler) Create(c echo.Context) error {
	// The auth middleware has already put the caller in the context.
	uid, err := actor(c)
	if err != nil {
		return err
	}
	listID, err := paramID(c, "listId", "list")
	if err != nil {
		return err
	}
	var req createCardReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	card, err := h.Cards.Create(ctx, uid, listID, model.NewCard{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Labels:      req.Labels,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return created(c, card, "Card created successfully")
}

func (h *CardHandler) ByList(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	listID, err := paramID(c, "listId", "list")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Cards.ByList(ctx, uid, listID)
	if err != nil {
		return err
	}
	return ok(c, out, "Cards fetched successfully")
}

// Get returns one card with its assignees.
func (h *CardHandler) Get(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	cardID, err := paramID(c, "cardId", "card")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	card, err := h.Cards.Get(ctx, uid, cardID)
	if err != nil {
		return err
	}
	return ok(c, card, "Card fetched successfully")
}

func (h *CardHandler) Update(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	cardID, err := paramID(c, "cardId", "card")
	if err != nil {
		return err
	}
	var req updateCardReq
	if err := bind(c, &req); err != nil {
		return err
	}
	// Only fields present in the body end up in the patch.
	patch, err := req.patch()
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	card, err := h.Cards.Update(ctx, uid, cardID, patch)
	if err != nil {
		return err
	}
	return ok(c, card, "Card updated successfully")
}

func (h *CardHandler) Delete(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	cardID, err := paramID(c, "cardId", "card")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Cards.Delete(ctx, uid, cardID); err != nil {
		return err
	}
	return ok(c, nil, "Card deleted successfully")
}

// Move applies a drag using the source/target naming of the board UI.
func (h *CardHandler) Move(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	cardID, err := paramID(c, "cardId", "card")
	if err != nil {
		return err
	}
	var req moveTaskReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.SourceListID == 0 || req.TargetListID == 0 {
		return apperr.InvalidArgument("Missing list IDs")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	// target maps onto destination; the service shares one code path.
	res, err := h.Cards.MoveTask(ctx, uid, model.CardReorder{
		CardID:             cardID,
		SourceListID:       req.SourceListID,
		DestinationListID:  req.TargetListID,
		SourceOrder:        req.SourceCardOrder,
		DestinationOrder:   req.TargetCardOrder,
		SourceVersion:      req.SourceVersion,
		DestinationVersion: req.TargetVersion,
	})
	if err != nil {
		return err
	}
	return ok(c, res, "Card moved successfully")
}

// Reorder moves a card within or across lists of one board.
func (h *CardHandler) Reorder(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	cardID, err := paramID(c, "cardId", "card")
	if err != nil {
		return err
	}
	var req reorderReq
	if err := bind(c, &req); err != nil {
		return err
	}
	// An empty source order is valid when the list is left empty, a missing one is not.
	if req.SourceListID == 0 || req.DestinationListID == 0 || req.SourceCardOrder == nil {
		return apperr.InvalidArgument("Missing required data.")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Cards.Reorder(ctx, uid, model.CardReorder{
		CardID:             cardID,
		SourceListID:       req.SourceListID,
		DestinationListID:  req.DestinationListID,
		SourceOrder:        req.SourceCardOrder,
		DestinationOrder:   req.DestinationCardOrder,
		SourceVersion:      req.SourceVersion,
		DestinationVersion: req.DestinationVersion,
	})
	if err != nil {
		return err
	}
	return ok(c, res, "Cards reordered successfully")
}

// Assign adds users to a card's assignees.
func (h *CardHandler) Assign(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	var req assignReq
	if err := bind(c, &req); err != nil {
		return err
	}
	// The card comes from the body here, not the path.
	if req.CardID == 0 || len(req.UserIDs) == 0 {
		return apperr.InvalidArgument("Card ID and user IDs are required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	card, err := h.Cards.Assign(ctx, uid, req.CardID, req.UserIDs)
	if err != nil {
		return err
	}
	return ok(c, card, "Users assigned to card successfully")
}

func (h *CardHandler) AssignedMembers(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	cardID, err := paramID(c, "cardId", "card")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Cards.AssignedMembers(ctx, uid, cardID)
	if err != nil {
		return err
	}
	return ok(c, out, "Assigned members fetched successfully")
}
