package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/apperr"
	"github.com/iliyamo/taskboard/internal/service"
)

// ListHandler serves list (column) endpoints.
type ListHandler struct {
	Lists *service.ListService
}

func NewListHandler(lists *service.ListService) *ListHandler {
	return &ListHandler{Lists: lists}
}

// ----- DTOs -----

type createListReq struct {
	Title string `json:"title"`
}

type updateListReq struct {
	Title    *string `json:"title"`
	Position *int    `json:"position"`
	Version  *int64  `json:"version"`
}

type moveColumnReq struct {
	SourcePosition int    `json:"sourcePosition"`
	TargetPosition *int   `json:"targetPosition"`
	Version        *int64 `json:"version"`
}

func (h *ListHandler) Create(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	boardID, err := paramID(c, "boardId", "board")
	if err != nil {
		return err
	}
	var req createListReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	l, err := h.Lists.Create(ctx, uid, boardID, req.Title)
	if err != nil {
		return err
	}
	return created(c, l, "List created successfully")
}

// ByBoard returns the board's lists, each with its cards.
func (h *ListHandler) ByBoard(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	boardID, err := paramID(c, "boardId", "board")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Lists.ByBoard(ctx, uid, boardID)
	if err != nil {
		return err
	}
	return ok(c, out, "Lists with cards fetched successfully")
}

func (h *ListHandler) Update(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	listID, err := paramID(c, "listId", "list")
	if err != nil {
		return err
	}
	var req updateListReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	l, err := h.Lists.Update(ctx, uid, listID, service.ListPatch{Title: req.Title, Position: req.Position, ExpectedVersion: req.Version})
	if err != nil {
		return err
	}
	return ok(c, l, "List updated successfully")
}

func (h *ListHandler) Delete(c echo.Context) error {
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

	if err := h.Lists.Delete(ctx, uid, listID); err != nil {
		return err
	}
	return ok(c, nil, "List deleted successfully")
}

// Move repositions a list; version is the board version the client saw.
func (h *ListHandler) Move(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	listID, err := paramID(c, "listId", "list")
	if err != nil {
		return err
	}
	var req moveColumnReq
	if err := bind(c, &req); err != nil {
		return err
	}
	// 0 is a valid target, so absence is checked on the pointer.
	if req.TargetPosition == nil {
		return apperr.InvalidArgument("Target position is required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	mv, err := h.Lists.MoveColumn(ctx, uid, listID, req.SourcePosition, *req.TargetPosition, req.Version)
	if err != nil {
		return err
	}
	return ok(c, mv, "Column moved successfully")
}
