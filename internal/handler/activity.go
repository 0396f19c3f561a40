package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/cache"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/hub"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/membership"
)

// ActivityHandler serves group activity feeds and call participant rosters.
type ActivityHandler struct {
	mirror *cache.Mirror
	hub    *hub.Hub
	oracle membership.Oracle
	log    *zap.SugaredLogger
}

// NewActivityHandler constructs the handler. mirror may be nil when Redis is
// not configured; the feed endpoint then returns an empty list.
func NewActivityHandler(mirror *cache.Mirror, h *hub.Hub, oracle membership.Oracle, log *zap.SugaredLogger) *ActivityHandler {
	return &ActivityHandler{mirror: mirror, hub: h, oracle: oracle, log: log}
}

// GetGroupActivity returns the group's recent activity feed, newest first.
func (h *ActivityHandler) GetGroupActivity(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	groupID := c.Params("id")

	ok, err := h.oracle.IsGroupMember(c.Context(), groupID, userID)
	if err != nil {
		h.log.Errorf("[Activity] membership check failed for group %s user %d: %v", groupID, userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to verify membership"})
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a member of this group"})
	}

	if h.mirror == nil {
		return c.JSON(fiber.Map{"success": true, "activity": []cache.ActivityEntry{}})
	}

	entries, err := h.mirror.RecentActivity(c.Context(), groupID, 50)
	if err != nil {
		h.log.Errorf("[Activity] feed read failed for group %s: %v", groupID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read activity feed"})
	}
	return c.JSON(fiber.Map{"success": true, "activity": entries})
}

// GetCallParticipants returns the caller's view of who is in a call and
// their audio/video state.
func (h *ActivityHandler) GetCallParticipants(c *fiber.Ctx) error {
	callID := c.Params("id")

	type participant struct {
		UserID int64                `json:"user_id"`
		State  hub.ParticipantState `json:"state"`
	}

	members := h.hub.Presence().Participants(callID)
	out := make([]participant, 0, len(members))
	for userID, state := range members {
		out = append(out, participant{UserID: userID, State: state})
	}
	return c.JSON(fiber.Map{"success": true, "participants": out})
}
