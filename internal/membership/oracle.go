// Package membership answers "is this user allowed in this group/whiteboard"
// against the relational store. The hub consults it on join for gated room
// kinds only; calls and breakout rooms are access-controlled by whoever hands
// out the call id.
package membership

import (
	"context"
	"strconv"

	"gorm.io/gorm"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/model"
)

// Oracle reports group or whiteboard membership.
type Oracle interface {
	// IsGroupMember reports whether userID is an active member of the group.
	IsGroupMember(ctx context.Context, groupID string, userID int64) (bool, error)
	// CanAccessWhiteboard reports whether userID may join the whiteboard room:
	// the owner, or an active member of the whiteboard's group.
	CanAccessWhiteboard(ctx context.Context, whiteboardID string, userID int64) (bool, error)
}

// GormOracle answers membership queries from the group_members and
// whiteboards tables.
type GormOracle struct {
	db *gorm.DB
}

// NewGormOracle creates a GormOracle.
func NewGormOracle(db *gorm.DB) *GormOracle {
	return &GormOracle{db: db}
}

func (o *GormOracle) IsGroupMember(ctx context.Context, groupID string, userID int64) (bool, error) {
	gid, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return false, nil
	}

	var count int64
	err = o.db.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND status = ?", gid, userID, "ACTIVE").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (o *GormOracle) CanAccessWhiteboard(ctx context.Context, whiteboardID string, userID int64) (bool, error) {
	var board model.Whiteboard
	err := o.db.WithContext(ctx).
		Select("owner_id", "group_id").
		Where("id = ?", whiteboardID).
		First(&board).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}

	if board.OwnerID == userID {
		return true, nil
	}
	if board.GroupID == nil {
		return false, nil
	}

	var count int64
	err = o.db.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND status = ?", *board.GroupID, userID, "ACTIVE").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
