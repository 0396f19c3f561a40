package whiteboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/config"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/metrics"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/model"
)

var ErrElementExists = errors.New("element id already present")

// boardLock serializes load-mutate-save cycles for one whiteboard. refs
// counts waiters so entries can be reclaimed once nobody holds them.
type boardLock struct {
	mu   sync.Mutex
	refs int
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*boardLock
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*boardLock)}
}

// lock acquires the per-board lock and returns its release func.
func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	bl := k.locks[id]
	if bl == nil {
		bl = &boardLock{}
		k.locks[id] = bl
	}
	bl.refs++
	k.mu.Unlock()

	bl.mu.Lock()
	return func() {
		bl.mu.Unlock()
		k.mu.Lock()
		bl.refs--
		if bl.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

// Service is the versioned canvas engine. Every mutation runs as an atomic
// load-mutate-save cycle under a per-board lock and bumps the document
// version by exactly one.
type Service struct {
	gateway Gateway
	cfg     config.CanvasConfig
	log     *zap.SugaredLogger
	boards  *keyedMutex
}

func NewService(gateway Gateway, cfg config.CanvasConfig, log *zap.SugaredLogger) *Service {
	return &Service{
		gateway: gateway,
		cfg:     cfg,
		boards:  newKeyedMutex(),
		log:     log,
	}
}

// CreateWhiteboard creates an empty canvas at version 1 and returns it.
func (s *Service) CreateWhiteboard(ctx context.Context, ownerID int64, title string, groupID *int64) (*model.CanvasDocument, error) {
	doc := &model.CanvasDocument{
		WhiteboardID: uuid.New().String(),
		OwnerID:      ownerID,
		Elements:     []model.Element{},
		Version:      1,
		Background:   "#ffffff",
	}
	if err := s.gateway.CreateCanvas(ctx, doc, title, groupID); err != nil {
		return nil, err
	}
	s.log.Infof("[Whiteboard] created board %s for user %d", doc.WhiteboardID, ownerID)
	return doc, nil
}

// Get loads the live canvas document.
func (s *Service) Get(ctx context.Context, whiteboardID string) (*model.CanvasDocument, error) {
	return s.gateway.LoadCanvas(ctx, whiteboardID)
}

// StoreElements replaces the canvas's full element sequence.
func (s *Service) StoreElements(ctx context.Context, whiteboardID string, elements []model.Element) (*model.CanvasDocument, error) {
	return s.mutate(ctx, whiteboardID, "store", func(doc *model.CanvasDocument) error {
		if elements == nil {
			elements = []model.Element{}
		}
		doc.Elements = elements
		return nil
	})
}

// AddElement appends one element to the canvas. An element supplied without
// an id gets one assigned; a duplicate id is rejected.
func (s *Service) AddElement(ctx context.Context, whiteboardID string, element model.Element) (*model.CanvasDocument, error) {
	return s.mutate(ctx, whiteboardID, "add", func(doc *model.CanvasDocument) error {
		if element == nil {
			element = model.Element{}
		}
		if element.ID() == "" {
			element["id"] = uuid.New().String()
		}
		for _, el := range doc.Elements {
			if el.ID() == element.ID() {
				return fmt.Errorf("%w: %s", ErrElementExists, element.ID())
			}
		}
		doc.Elements = append(doc.Elements, element)
		return nil
	})
}

// UpdateElement merges a patch onto the element with the given id. A missing
// element makes the merge a no-op, but the mutation still succeeds and bumps
// the version so clients converge on a single ordering.
func (s *Service) UpdateElement(ctx context.Context, whiteboardID, elementID string, patch map[string]any) (*model.CanvasDocument, error) {
	return s.mutate(ctx, whiteboardID, "update", func(doc *model.CanvasDocument) error {
		for _, el := range doc.Elements {
			if el.ID() == elementID {
				el.Merge(patch)
				break
			}
		}
		return nil
	})
}

// DeleteElement removes the element with the given id. Deleting an element
// that is already gone still succeeds and bumps the version.
func (s *Service) DeleteElement(ctx context.Context, whiteboardID, elementID string) (*model.CanvasDocument, error) {
	return s.mutate(ctx, whiteboardID, "delete", func(doc *model.CanvasDocument) error {
		for i, el := range doc.Elements {
			if el.ID() == elementID {
				doc.Elements = append(doc.Elements[:i], doc.Elements[i+1:]...)
				break
			}
		}
		return nil
	})
}

// mutate runs one load-mutate-save cycle under the board lock. On success
// the version has advanced by exactly one and the restore marker is cleared.
func (s *Service) mutate(ctx context.Context, whiteboardID, op string, fn func(doc *model.CanvasDocument) error) (*model.CanvasDocument, error) {
	unlock := s.boards.lock(whiteboardID)
	defer unlock()

	doc, err := s.gateway.LoadCanvas(ctx, whiteboardID)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	doc.Version++
	doc.RestoredFrom = nil
	if err := s.gateway.SaveCanvas(ctx, doc); err != nil {
		return nil, err
	}
	doc.LastModified = time.Now().UTC()
	metrics.IncCanvasMutation(op)
	return doc, nil
}

// CreateVersionSnapshot copies the live document into an immutable snapshot
// numbered one above the board's highest existing snapshot.
func (s *Service) CreateVersionSnapshot(ctx context.Context, whiteboardID string, userID int64) (*model.CanvasSnapshot, error) {
	unlock := s.boards.lock(whiteboardID)
	defer unlock()
	return s.snapshotLocked(ctx, whiteboardID, userID)
}

func (s *Service) snapshotLocked(ctx context.Context, whiteboardID string, userID int64) (*model.CanvasSnapshot, error) {
	doc, err := s.gateway.LoadCanvas(ctx, whiteboardID)
	if err != nil {
		return nil, err
	}
	max, err := s.gateway.MaxSnapshotVersion(ctx, whiteboardID)
	if err != nil {
		return nil, err
	}
	snap := &model.CanvasSnapshot{
		WhiteboardID:  whiteboardID,
		VersionNumber: max + 1,
		Elements:      doc.CloneElements(),
		Background:    doc.Background,
		CreatedBy:     userID,
	}
	if err := s.gateway.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	s.log.Infof("[Whiteboard] snapshot %d saved for board %s", snap.VersionNumber, whiteboardID)
	return snap, nil
}

// RestoreVersion replaces the live document with a snapshot's contents. The
// pre-restore state is snapshotted first so a restore is always reversible,
// and the live version keeps climbing: it becomes current+1, never the
// restored snapshot's number.
func (s *Service) RestoreVersion(ctx context.Context, whiteboardID string, versionNumber int, userID int64) (*model.CanvasDocument, error) {
	unlock := s.boards.lock(whiteboardID)
	defer unlock()

	snap, err := s.gateway.LoadSnapshot(ctx, whiteboardID, versionNumber)
	if err != nil {
		return nil, err
	}
	if _, err := s.snapshotLocked(ctx, whiteboardID, userID); err != nil {
		return nil, fmt.Errorf("pre-restore snapshot: %w", err)
	}

	doc, err := s.gateway.LoadCanvas(ctx, whiteboardID)
	if err != nil {
		return nil, err
	}
	restored := versionNumber
	doc.Elements = snap.Elements
	doc.Background = snap.Background
	doc.Version++
	doc.RestoredFrom = &restored
	if err := s.gateway.SaveCanvas(ctx, doc); err != nil {
		return nil, err
	}
	doc.LastModified = time.Now().UTC()
	metrics.IncCanvasMutation("restore")
	s.log.Infof("[Whiteboard] board %s restored from snapshot %d as version %d", whiteboardID, versionNumber, doc.Version)
	return doc, nil
}

// AutoSaveVersion snapshots the board only when enough quiet time has passed
// since the last snapshot. Returns whether a snapshot was created.
func (s *Service) AutoSaveVersion(ctx context.Context, whiteboardID string, userID int64) (bool, *model.CanvasSnapshot, error) {
	unlock := s.boards.lock(whiteboardID)
	defer unlock()

	latest, err := s.gateway.LatestSnapshot(ctx, whiteboardID)
	if err != nil && !errors.Is(err, ErrVersionNotFound) {
		return false, nil, err
	}
	if latest != nil && time.Since(latest.CreatedAt) < s.cfg.AutoSaveQuiet {
		return false, nil, nil
	}

	snap, err := s.snapshotLocked(ctx, whiteboardID, userID)
	if err != nil {
		return false, nil, err
	}
	return true, snap, nil
}

// History is one page of a board's snapshot list, newest first.
type History struct {
	Versions []model.CanvasSnapshot `json:"versions"`
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PerPage  int                    `json:"per_page"`
}

// maxHistoryPageSize bounds how many snapshots a single history page may
// carry regardless of what the caller asks for.
const maxHistoryPageSize = 100

// GetHistory lists snapshots newest-first, paginated. Pages start at 1.
// A limit of zero or less falls back to the configured page size; callers
// cannot request more than maxHistoryPageSize per page.
func (s *Service) GetHistory(ctx context.Context, whiteboardID string, page, limit int) (*History, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = s.cfg.HistoryPageLimit
	}
	if limit > maxHistoryPageSize {
		limit = maxHistoryPageSize
	}
	snaps, total, err := s.gateway.ListSnapshots(ctx, whiteboardID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &History{Versions: snaps, Total: total, Page: page, PerPage: limit}, nil
}
