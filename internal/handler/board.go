package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/service"
)

// BoardHandler serves board and membership endpoints.
type BoardHandler struct {
	Boards *service.BoardService
}

func NewBoardHandler(boards *service.BoardService) *BoardHandler {
	return &BoardHandler{Boards: boards}
}

// ----- DTOs -----

type createBoardReq struct {
	Title    string   `json:"title"`
	Color    string   `json:"color"`
	Position int      `json:"position"`
	Members  []uint64 `json:"members"`
}

type updateBoardReq struct {
	Title   *string   `json:"title"`
	Color   *string   `json:"color"`
	Members *[]uint64 `json:"members"`
}

type boardPositionsReq struct {
	Boards []model.BoardPosition `json:"boards"`
}

type addMemberReq struct {
	BoardID uint64 `json:"boardId"`
	UserID  uint64 `json:"userId"`
}

func (h *BoardHandler) Create(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	var req createBoardReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Boards.Create(ctx, uid, service.NewBoard{
		Title:    req.Title,
		Color:    req.Color,
		Position: req.Position,
		Members:  req.Members,
	})
	if err != nil {
		return err
	}
	return created(c, b, "Board created successfully")
}

// List returns the caller's boards ordered by position.
func (h *BoardHandler) List(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Boards.List(ctx, uid)
	if err != nil {
		return err
	}
	return ok(c, out, "Boards retrieved successfully")
}

func (h *BoardHandler) Get(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "boardId", "board")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Boards.Get(ctx, id, uid)
	if err != nil {
		return err
	}
	return ok(c, b, "Board retrieved successfully")
}

func (h *BoardHandler) Update(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "boardId", "board")
	if err != nil {
		return err
	}
	var req updateBoardReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	// Only the creator may edit; the service enforces that.
	b, err := h.Boards.Update(ctx, id, uid, model.BoardPatch{Title: req.Title, Color: req.Color, Members: req.Members})
	if err != nil {
		return err
	}
	return ok(c, b, "Board updated successfully")
}

func (h *BoardHandler) Delete(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "boardId", "board")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	// Lists, cards and memberships are removed with the board.
	if err := h.Boards.Delete(ctx, id, uid); err != nil {
		return err
	}
	return ok(c, nil, "Board deleted successfully")
}

// UpdatePositions applies a bulk reorder of the caller's boards.
func (h *BoardHandler) UpdatePositions(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	var req boardPositionsReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	// All or nothing: one foreign board rejects the whole batch.
	out, err := h.Boards.UpdatePositions(ctx, uid, req.Boards)
	if err != nil {
		return err
	}
	return ok(c, out, "Board positions updated successfully")
}

func (h *BoardHandler) AddMember(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	var req addMemberReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	// The reply is the full member list after the insert.
	members, err := h.Boards.AddMember(ctx, req.BoardID, req.UserID, uid)
	if err != nil {
		return err
	}
	return ok(c, members, "User added to board successfully")
}

func (h *BoardHandler) Members(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "boardId", "board")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Boards.Members(ctx, id, uid)
	if err != nil {
		return err
	}
	return ok(c, out, "Board members retrieved successfully")
}

// SearchMembers filters board members by ?query=; no match is [].
func (h *BoardHandler) SearchMembers(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "boardId", "board")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Boards.SearchMembers(ctx, id, uid, c.QueryParam("query"))
	if err != nil {
		return err
	}
	return ok(c, out, "Members fetched successfully")
}
