package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/hub"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/membership"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/model"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/whiteboard"
)

// WhiteboardHandler serves the REST side of the canvas engine: board CRUD,
// version history, restore, and exports. Live edits go through the socket.
type WhiteboardHandler struct {
	service *whiteboard.Service
	oracle  membership.Oracle
	hub     *hub.Hub
	log     *zap.SugaredLogger
}

func NewWhiteboardHandler(service *whiteboard.Service, oracle membership.Oracle, h *hub.Hub, log *zap.SugaredLogger) *WhiteboardHandler {
	return &WhiteboardHandler{service: service, oracle: oracle, hub: h, log: log}
}

type createWhiteboardRequest struct {
	Title   string `json:"title"`
	GroupID *int64 `json:"group_id,omitempty"`
}

// CreateWhiteboard creates an empty board owned by the caller.
func (h *WhiteboardHandler) CreateWhiteboard(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var req createWhiteboardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Title is required"})
	}

	doc, err := h.service.CreateWhiteboard(c.Context(), userID, req.Title, req.GroupID)
	if err != nil {
		h.log.Errorf("[Whiteboard] create failed for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create whiteboard"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "whiteboard": doc})
}

// GetWhiteboard returns the live canvas document.
func (h *WhiteboardHandler) GetWhiteboard(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	boardID := c.Params("id")

	if ok := h.authorize(c, boardID, userID); !ok {
		return nil
	}

	doc, err := h.service.Get(c.Context(), boardID)
	if err != nil {
		return h.serviceError(c, boardID, err)
	}
	return c.JSON(fiber.Map{"success": true, "whiteboard": doc})
}

type storeElementsRequest struct {
	Elements []model.Element `json:"elements"`
}

// StoreElements replaces the board's full element sequence.
func (h *WhiteboardHandler) StoreElements(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	boardID := c.Params("id")

	if ok := h.authorize(c, boardID, userID); !ok {
		return nil
	}

	var req storeElementsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	doc, err := h.service.StoreElements(c.Context(), boardID, req.Elements)
	if err != nil {
		return h.serviceError(c, boardID, err)
	}
	return c.JSON(fiber.Map{"success": true, "version": doc.Version})
}

// GetHistory lists the board's snapshots newest first.
func (h *WhiteboardHandler) GetHistory(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	boardID := c.Params("id")

	if ok := h.authorize(c, boardID, userID); !ok {
		return nil
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	history, err := h.service.GetHistory(c.Context(), boardID, page, limit)
	if err != nil {
		return h.serviceError(c, boardID, err)
	}
	return c.JSON(fiber.Map{"success": true, "history": history})
}

// CreateSnapshot saves a manual version snapshot of the board.
func (h *WhiteboardHandler) CreateSnapshot(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	boardID := c.Params("id")

	if ok := h.authorize(c, boardID, userID); !ok {
		return nil
	}

	snap, err := h.service.CreateVersionSnapshot(c.Context(), boardID, userID)
	if err != nil {
		return h.serviceError(c, boardID, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "version": snap.VersionNumber})
}

// AutoSave snapshots the board if the quiet interval has elapsed.
func (h *WhiteboardHandler) AutoSave(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	boardID := c.Params("id")

	if ok := h.authorize(c, boardID, userID); !ok {
		return nil
	}

	created, snap, err := h.service.AutoSaveVersion(c.Context(), boardID, userID)
	if err != nil {
		return h.serviceError(c, boardID, err)
	}
	resp := fiber.Map{"success": true, "created": created}
	if created {
		resp["version"] = snap.VersionNumber
	}
	return c.JSON(resp)
}

type restoreRequest struct {
	Version int `json:"version"`
}

// RestoreVersion rolls the live board back to a snapshot. The state being
// replaced is snapshotted first, and the result is pushed to everyone on the
// board's socket room.
func (h *WhiteboardHandler) RestoreVersion(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	boardID := c.Params("id")

	if ok := h.authorize(c, boardID, userID); !ok {
		return nil
	}

	var req restoreRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	doc, err := h.service.RestoreVersion(c.Context(), boardID, req.Version, userID)
	if err != nil {
		return h.serviceError(c, boardID, err)
	}

	h.hub.Broadcast(hub.RoomWhiteboard, boardID, "whiteboard_restored", doc, 0)
	return c.JSON(fiber.Map{"success": true, "whiteboard": doc})
}

// ExportCanvas renders the board as SVG or PNG metadata.
func (h *WhiteboardHandler) ExportCanvas(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	boardID := c.Params("id")

	if ok := h.authorize(c, boardID, userID); !ok {
		return nil
	}

	format := whiteboard.ExportFormat(c.Query("format", "svg"))
	width, _ := strconv.Atoi(c.Query("width", "0"))
	height, _ := strconv.Atoi(c.Query("height", "0"))
	export, err := h.service.ExportCanvas(c.Context(), boardID, format, width, height)
	if err != nil {
		if errors.Is(err, whiteboard.ErrUnsupportedFormat) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unsupported export format"})
		}
		return h.serviceError(c, boardID, err)
	}

	c.Set("Content-Type", export.ContentType)
	return c.Send(export.Data)
}

// authorize checks board access and writes the error response itself when
// access is denied. Returns whether the request may proceed.
func (h *WhiteboardHandler) authorize(c *fiber.Ctx, boardID string, userID int64) bool {
	ok, err := h.oracle.CanAccessWhiteboard(c.Context(), boardID, userID)
	if err != nil {
		h.log.Errorf("[Whiteboard] access check failed for board %s user %d: %v", boardID, userID, err)
		_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to verify access"})
		return false
	}
	if !ok {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No access to this whiteboard"})
		return false
	}
	return true
}

func (h *WhiteboardHandler) serviceError(c *fiber.Ctx, boardID string, err error) error {
	switch {
	case errors.Is(err, whiteboard.ErrWhiteboardNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Whiteboard not found"})
	case errors.Is(err, whiteboard.ErrVersionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Version not found"})
	default:
		h.log.Errorf("[Whiteboard] operation failed for board %s: %v", boardID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Whiteboard operation failed"})
	}
}
