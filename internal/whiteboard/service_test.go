package whiteboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/config"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/logging"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/model"
)

// memoryGateway keeps canvases and snapshots in maps, mirroring the row
// semantics of the gorm gateway.
type memoryGateway struct {
	mu        sync.Mutex
	boards    map[string]*model.CanvasDocument
	snapshots map[string][]model.CanvasSnapshot
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{
		boards:    make(map[string]*model.CanvasDocument),
		snapshots: make(map[string][]model.CanvasSnapshot),
	}
}

func (g *memoryGateway) CreateCanvas(_ context.Context, doc *model.CanvasDocument, _ string, _ *int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *doc
	cp.Elements = doc.CloneElements()
	cp.LastModified = time.Now()
	g.boards[doc.WhiteboardID] = &cp
	return nil
}

func (g *memoryGateway) LoadCanvas(_ context.Context, id string) (*model.CanvasDocument, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, ok := g.boards[id]
	if !ok {
		return nil, ErrWhiteboardNotFound
	}
	cp := *doc
	cp.Elements = doc.CloneElements()
	return &cp, nil
}

func (g *memoryGateway) SaveCanvas(_ context.Context, doc *model.CanvasDocument) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.boards[doc.WhiteboardID]; !ok {
		return ErrWhiteboardNotFound
	}
	cp := *doc
	cp.Elements = doc.CloneElements()
	cp.LastModified = time.Now()
	g.boards[doc.WhiteboardID] = &cp
	return nil
}

func (g *memoryGateway) SaveSnapshot(_ context.Context, snap *model.CanvasSnapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	g.snapshots[snap.WhiteboardID] = append(g.snapshots[snap.WhiteboardID], *snap)
	return nil
}

func (g *memoryGateway) LoadSnapshot(_ context.Context, id string, version int) (*model.CanvasSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.snapshots[id] {
		if s.VersionNumber == version {
			cp := s
			return &cp, nil
		}
	}
	return nil, ErrVersionNotFound
}

func (g *memoryGateway) ListSnapshots(_ context.Context, id string, limit, offset int) ([]model.CanvasSnapshot, int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	all := g.snapshots[id]
	// newest first
	out := make([]model.CanvasSnapshot, len(all))
	for i, s := range all {
		out[len(all)-1-i] = s
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []model.CanvasSnapshot{}, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (g *memoryGateway) LatestSnapshot(_ context.Context, id string) (*model.CanvasSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	all := g.snapshots[id]
	if len(all) == 0 {
		return nil, ErrVersionNotFound
	}
	cp := all[len(all)-1]
	return &cp, nil
}

func (g *memoryGateway) MaxSnapshotVersion(_ context.Context, id string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	max := 0
	for _, s := range g.snapshots[id] {
		if s.VersionNumber > max {
			max = s.VersionNumber
		}
	}
	return max, nil
}

func testService(t *testing.T) (*Service, *memoryGateway) {
	t.Helper()
	gw := newMemoryGateway()
	cfg := config.CanvasConfig{
		SaveTimeout:      time.Second,
		AutoSaveQuiet:    5 * time.Minute,
		ExportWidth:      1920,
		ExportHeight:     1080,
		HistoryPageLimit: 3,
	}
	return NewService(gw, cfg, logging.Nop()), gw
}

func TestCreateWhiteboardStartsAtVersionOne(t *testing.T) {
	svc, _ := testService(t)

	doc, err := svc.CreateWhiteboard(context.Background(), 1, "Calculus notes", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Empty(t, doc.Elements)
	assert.Equal(t, "#ffffff", doc.Background)
	assert.NotEmpty(t, doc.WhiteboardID)
}

func TestEveryMutationBumpsVersionByOne(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	doc, err := svc.CreateWhiteboard(ctx, 1, "board", nil)
	require.NoError(t, err)
	id := doc.WhiteboardID

	doc, err = svc.AddElement(ctx, id, model.Element{"id": "a", "type": "rectangle"})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)

	doc, err = svc.UpdateElement(ctx, id, "a", map[string]any{"width": 50})
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Version)

	// Updating a missing element is a no-op on content but still a mutation.
	doc, err = svc.UpdateElement(ctx, id, "ghost", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 4, doc.Version)

	doc, err = svc.DeleteElement(ctx, id, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 5, doc.Version)

	doc, err = svc.StoreElements(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, doc.Version)
	assert.Empty(t, doc.Elements)
}

func TestAddElementRejectsDuplicateID(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	doc, err := svc.CreateWhiteboard(ctx, 1, "board", nil)
	require.NoError(t, err)

	_, err = svc.AddElement(ctx, doc.WhiteboardID, model.Element{"id": "a", "type": "circle"})
	require.NoError(t, err)
	_, err = svc.AddElement(ctx, doc.WhiteboardID, model.Element{"id": "a", "type": "circle"})
	require.ErrorIs(t, err, ErrElementExists)

	// A failed mutation must not advance the version.
	cur, err := svc.Get(ctx, doc.WhiteboardID)
	require.NoError(t, err)
	assert.Equal(t, 2, cur.Version)
}

func TestAddElementAssignsMissingID(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	doc, err := svc.CreateWhiteboard(ctx, 1, "board", nil)
	require.NoError(t, err)

	doc, err = svc.AddElement(ctx, doc.WhiteboardID, model.Element{"type": "text", "text": "hello"})
	require.NoError(t, err)
	require.Len(t, doc.Elements, 1)
	assert.NotEmpty(t, doc.Elements[0].ID())
}

func TestUpdateElementNeverChangesID(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	doc, err := svc.CreateWhiteboard(ctx, 1, "board", nil)
	require.NoError(t, err)
	id := doc.WhiteboardID

	_, err = svc.AddElement(ctx, id, model.Element{"id": "a", "type": "circle", "r": 5.0})
	require.NoError(t, err)

	doc, err = svc.UpdateElement(ctx, id, "a", map[string]any{"id": "evil", "r": 9.0})
	require.NoError(t, err)
	require.Len(t, doc.Elements, 1)
	assert.Equal(t, "a", doc.Elements[0].ID())
	assert.Equal(t, 9.0, doc.Elements[0]["r"])
}

func TestSnapshotNumbersAreSequential(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	doc, err := svc.CreateWhiteboard(ctx, 1, "board", nil)
	require.NoError(t, err)

	s1, err := svc.CreateVersionSnapshot(ctx, doc.WhiteboardID, 1)
	require.NoError(t, err)
	s2, err := svc.CreateVersionSnapshot(ctx, doc.WhiteboardID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, s1.VersionNumber)
	assert.Equal(t, 2, s2.VersionNumber)
}

func TestRestoreIsReversible(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	doc, err := svc.CreateWhiteboard(ctx, 1, "board", nil)
	require.NoError(t, err)
	id := doc.WhiteboardID

	_, err = svc.AddElement(ctx, id, model.Element{"id": "a", "type": "rectangle"})
	require.NoError(t, err)
	snap, err := svc.CreateVersionSnapshot(ctx, id, 1) // snapshot #1: [a]
	require.NoError(t, err)

	_, err = svc.AddElement(ctx, id, model.Element{"id": "b", "type": "circle"})
	require.NoError(t, err)
	before, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, before.Elements, 2)

	restored, err := svc.RestoreVersion(ctx, id, snap.VersionNumber, 1)
	require.NoError(t, err)
	assert.Len(t, restored.Elements, 1)
	assert.Equal(t, "a", restored.Elements[0].ID())
	require.NotNil(t, restored.RestoredFrom)
	assert.Equal(t, snap.VersionNumber, *restored.RestoredFrom)
	// Version keeps climbing, never adopts the snapshot's number.
	assert.Equal(t, before.Version+1, restored.Version)

	// The pre-restore state was snapshotted, so the restore can be undone.
	history, err := svc.GetHistory(ctx, id, 1, 0)
	require.NoError(t, err)
	preRestore := history.Versions[0]
	assert.Len(t, preRestore.Elements, 2)

	back, err := svc.RestoreVersion(ctx, id, preRestore.VersionNumber, 1)
	require.NoError(t, err)
	assert.Len(t, back.Elements, 2)
	assert.Greater(t, back.Version, restored.Version)
}

func TestMutationClearsRestoreMarker(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	doc, err := svc.CreateWhiteboard(ctx, 1, "board", nil)
	require.NoError(t, err)
	id := doc.WhiteboardID

	snap, err := svc.CreateVersionSnapshot(ctx, id, 1)
	require.NoError(t, err)
	restored, err := svc.RestoreVersion(ctx, id, snap.VersionNumber, 1)
	require.NoError(t, err)
	require.NotNil(t, restored.RestoredFrom)

	after, err := svc.AddElement(ctx, id, model.Element{"id": "x", "type": "text"})
	require.NoError(t, err)
	assert.Nil(t, after.RestoredFrom)
}

func TestAutoSaveRespectsQuietInterval(t *testing.T) {
	svc, gw := testService(t)
	ctx := context.Background()

	doc, err := svc.CreateWhiteboard(ctx, 1, "board", nil)
	require.NoError(t, err)
	id := doc.WhiteboardID

	created, snap, err := svc.AutoSaveVersion(ctx, id, 1)
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, snap)

	// A second autosave right away is suppressed.
	created, _, err = svc.AutoSaveVersion(ctx, id, 1)
	require.NoError(t, err)
	assert.False(t, created)

	// Age the snapshot past the quiet interval and try again.
	gw.mu.Lock()
	gw.snapshots[id][0].CreatedAt = time.Now().Add(-10 * time.Minute)
	gw.mu.Unlock()

	created, snap, err = svc.AutoSaveVersion(ctx, id, 1)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, 2, snap.VersionNumber)
}

func TestHistoryIsNewestFirstAndPaginated(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	doc, err := svc.CreateWhiteboard(ctx, 1, "board", nil)
	require.NoError(t, err)
	id := doc.WhiteboardID

	for i := 0; i < 5; i++ {
		_, err := svc.CreateVersionSnapshot(ctx, id, 1)
		require.NoError(t, err)
	}

	page1, err := svc.GetHistory(ctx, id, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page1.Total)
	require.Len(t, page1.Versions, 3)
	assert.Equal(t, 5, page1.Versions[0].VersionNumber)
	assert.Equal(t, 3, page1.Versions[2].VersionNumber)

	page2, err := svc.GetHistory(ctx, id, 2, 0)
	require.NoError(t, err)
	require.Len(t, page2.Versions, 2)
	assert.Equal(t, 2, page2.Versions[0].VersionNumber)
	assert.Equal(t, 1, page2.Versions[1].VersionNumber)
}

func TestHistoryHonorsCallerLimit(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	doc, err := svc.CreateWhiteboard(ctx, 1, "board", nil)
	require.NoError(t, err)
	id := doc.WhiteboardID

	for i := 0; i < 5; i++ {
		_, err := svc.CreateVersionSnapshot(ctx, id, 1)
		require.NoError(t, err)
	}

	page, err := svc.GetHistory(ctx, id, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.PerPage)
	require.Len(t, page.Versions, 2)
	assert.Equal(t, 5, page.Versions[0].VersionNumber)

	page, err = svc.GetHistory(ctx, id, 3, 2)
	require.NoError(t, err)
	require.Len(t, page.Versions, 1)
	assert.Equal(t, 1, page.Versions[0].VersionNumber)

	// An oversized limit is clamped rather than honored verbatim.
	page, err = svc.GetHistory(ctx, id, 1, 100000)
	require.NoError(t, err)
	assert.Equal(t, maxHistoryPageSize, page.PerPage)
}

func TestMissingBoardSurfacesNotFound(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrWhiteboardNotFound)
	_, err = svc.AddElement(ctx, "nope", model.Element{"id": "a"})
	assert.ErrorIs(t, err, ErrWhiteboardNotFound)
	_, err = svc.RestoreVersion(ctx, "nope", 1, 1)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestConcurrentMutationsSerialize(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	doc, err := svc.CreateWhiteboard(ctx, 1, "board", nil)
	require.NoError(t, err)
	id := doc.WhiteboardID

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.AddElement(ctx, id, model.Element{"type": "text", "text": "x"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cur, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 21, cur.Version)
	assert.Len(t, cur.Elements, 20)
}
