package whiteboard

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/model"
)

var (
	ErrWhiteboardNotFound = errors.New("whiteboard not found")
	ErrVersionNotFound    = errors.New("whiteboard version not found")
)

// Gateway is the persistence boundary of the canvas engine. GormGateway is
// the production implementation; tests use an in-memory one.
type Gateway interface {
	CreateCanvas(ctx context.Context, doc *model.CanvasDocument, title string, groupID *int64) error
	LoadCanvas(ctx context.Context, whiteboardID string) (*model.CanvasDocument, error)
	SaveCanvas(ctx context.Context, doc *model.CanvasDocument) error

	SaveSnapshot(ctx context.Context, snap *model.CanvasSnapshot) error
	LoadSnapshot(ctx context.Context, whiteboardID string, versionNumber int) (*model.CanvasSnapshot, error)
	ListSnapshots(ctx context.Context, whiteboardID string, limit, offset int) ([]model.CanvasSnapshot, int64, error)
	LatestSnapshot(ctx context.Context, whiteboardID string) (*model.CanvasSnapshot, error)
	MaxSnapshotVersion(ctx context.Context, whiteboardID string) (int, error)
}

// GormGateway persists canvases and their snapshots through gorm.
type GormGateway struct {
	db *gorm.DB
}

func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

func (g *GormGateway) CreateCanvas(ctx context.Context, doc *model.CanvasDocument, title string, groupID *int64) error {
	elements, err := model.EncodeElements(doc.Elements)
	if err != nil {
		return fmt.Errorf("encode elements: %w", err)
	}
	row := model.Whiteboard{
		ID:         doc.WhiteboardID,
		OwnerID:    doc.OwnerID,
		GroupID:    groupID,
		Title:      title,
		Background: doc.Background,
		Elements:   elements,
		Version:    doc.Version,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create whiteboard: %w", err)
	}
	doc.LastModified = row.LastModified
	return nil
}

func (g *GormGateway) LoadCanvas(ctx context.Context, whiteboardID string) (*model.CanvasDocument, error) {
	var row model.Whiteboard
	err := g.db.WithContext(ctx).First(&row, "id = ?", whiteboardID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWhiteboardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load whiteboard %s: %w", whiteboardID, err)
	}
	elements, err := model.DecodeElements(row.Elements)
	if err != nil {
		return nil, fmt.Errorf("decode elements of %s: %w", whiteboardID, err)
	}
	return &model.CanvasDocument{
		WhiteboardID: row.ID,
		OwnerID:      row.OwnerID,
		Elements:     elements,
		Version:      row.Version,
		Background:   row.Background,
		RestoredFrom: row.RestoredFrom,
		LastModified: row.LastModified,
	}, nil
}

func (g *GormGateway) SaveCanvas(ctx context.Context, doc *model.CanvasDocument) error {
	elements, err := model.EncodeElements(doc.Elements)
	if err != nil {
		return fmt.Errorf("encode elements: %w", err)
	}
	res := g.db.WithContext(ctx).Model(&model.Whiteboard{}).
		Where("id = ?", doc.WhiteboardID).
		Updates(map[string]any{
			"elements":      elements,
			"version":       doc.Version,
			"background":    doc.Background,
			"restored_from": doc.RestoredFrom,
		})
	if res.Error != nil {
		return fmt.Errorf("save whiteboard %s: %w", doc.WhiteboardID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrWhiteboardNotFound
	}
	return nil
}

func (g *GormGateway) SaveSnapshot(ctx context.Context, snap *model.CanvasSnapshot) error {
	elements, err := model.EncodeElements(snap.Elements)
	if err != nil {
		return fmt.Errorf("encode snapshot elements: %w", err)
	}
	row := model.WhiteboardVersion{
		WhiteboardID:  snap.WhiteboardID,
		VersionNumber: snap.VersionNumber,
		Elements:      elements,
		Background:    snap.Background,
		CreatedBy:     snap.CreatedBy,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create snapshot %s#%d: %w", snap.WhiteboardID, snap.VersionNumber, err)
	}
	snap.CreatedAt = row.CreatedAt
	return nil
}

func (g *GormGateway) LoadSnapshot(ctx context.Context, whiteboardID string, versionNumber int) (*model.CanvasSnapshot, error) {
	var row model.WhiteboardVersion
	err := g.db.WithContext(ctx).
		First(&row, "whiteboard_id = ? AND version_number = ?", whiteboardID, versionNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s#%d: %w", whiteboardID, versionNumber, err)
	}
	return snapshotFromRow(&row)
}

func (g *GormGateway) ListSnapshots(ctx context.Context, whiteboardID string, limit, offset int) ([]model.CanvasSnapshot, int64, error) {
	var total int64
	if err := g.db.WithContext(ctx).Model(&model.WhiteboardVersion{}).
		Where("whiteboard_id = ?", whiteboardID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count snapshots of %s: %w", whiteboardID, err)
	}

	var rows []model.WhiteboardVersion
	err := g.db.WithContext(ctx).
		Where("whiteboard_id = ?", whiteboardID).
		Order("version_number DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list snapshots of %s: %w", whiteboardID, err)
	}

	snaps := make([]model.CanvasSnapshot, 0, len(rows))
	for i := range rows {
		snap, err := snapshotFromRow(&rows[i])
		if err != nil {
			return nil, 0, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, total, nil
}

func (g *GormGateway) LatestSnapshot(ctx context.Context, whiteboardID string) (*model.CanvasSnapshot, error) {
	var row model.WhiteboardVersion
	err := g.db.WithContext(ctx).
		Where("whiteboard_id = ?", whiteboardID).
		Order("version_number DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot of %s: %w", whiteboardID, err)
	}
	return snapshotFromRow(&row)
}

func (g *GormGateway) MaxSnapshotVersion(ctx context.Context, whiteboardID string) (int, error) {
	var max *int
	err := g.db.WithContext(ctx).Model(&model.WhiteboardVersion{}).
		Where("whiteboard_id = ?", whiteboardID).
		Select("MAX(version_number)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("max snapshot version of %s: %w", whiteboardID, err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func snapshotFromRow(row *model.WhiteboardVersion) (*model.CanvasSnapshot, error) {
	elements, err := model.DecodeElements(row.Elements)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s#%d: %w", row.WhiteboardID, row.VersionNumber, err)
	}
	return &model.CanvasSnapshot{
		WhiteboardID:  row.WhiteboardID,
		VersionNumber: row.VersionNumber,
		Elements:      elements,
		Background:    row.Background,
		CreatedBy:     row.CreatedBy,
		CreatedAt:     row.CreatedAt,
	}, nil
}
