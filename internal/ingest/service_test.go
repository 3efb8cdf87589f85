package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/importer"
	"github.com/hbomb79/Reel/internal/scene"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

func init() {
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
}

type fakeImporter struct {
	*sync.Mutex
	imported []string
	failWith error
}

func newFakeImporter() *fakeImporter {
	return &fakeImporter{Mutex: &sync.Mutex{}, imported: make([]string, 0)}
}

func (imp *fakeImporter) Import(_ context.Context, path string, useMatchingConfig bool) (*scene.Scene, error) {
	imp.Lock()
	defer imp.Unlock()

	if !useMatchingConfig {
		return nil, errors.New("ingest must always import with matching enabled")
	}
	if imp.failWith != nil {
		return nil, imp.failWith
	}

	imp.imported = append(imp.imported, path)
	return scene.New(path), nil
}

func (imp *fakeImporter) setFailure(err error) {
	imp.Lock()
	defer imp.Unlock()
	imp.failWith = err
}

func (imp *fakeImporter) importedPaths() []string {
	imp.Lock()
	defer imp.Unlock()

	out := append([]string{}, imp.imported...)
	sort.Strings(out)
	return out
}

type fakeStore struct {
	paths  []string
	scenes map[uuid.UUID]*scene.Scene
}

func (store *fakeStore) GetAllScenePaths() ([]string, error) { return store.paths, nil }

func (store *fakeStore) GetScene(id uuid.UUID) (*scene.Scene, error) {
	if sc, ok := store.scenes[id]; ok {
		return sc, nil
	}

	return nil, scene.ErrNotFound
}

func itemPaths(items []*IngestItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Path
	}
	sort.Strings(out)
	return out
}

func Test_DiscoverNewFiles_SkipsKnownAndBlacklisted(t *testing.T) {
	dir := fs.NewDir(t, "reel-ingest",
		fs.WithFile("known.mp4", "data"),
		fs.WithFile("new.mp4", "data"),
		fs.WithFile("new.nfo", "data"),
		fs.WithDir("nested", fs.WithFile("deep.mkv", "data")),
	)
	defer dir.Remove()

	store := &fakeStore{paths: []string{dir.Join("known.mp4")}}
	service, err := New(Config{
		IngestPaths: []string{dir.Path()},
		Blacklist:   []string{`\.nfo$`},
		Parallelism: 1,
	}, newFakeImporter(), store, nil)
	require.NoError(t, err)

	service.DiscoverNewFiles()

	items := service.GetAllIngests()
	assert.Equal(t, []string{dir.Join("nested", "deep.mkv"), dir.Join("new.mp4")}, itemPaths(items))
	for _, item := range items {
		assert.Equal(t, IDLE, item.State)
	}

	// A second discovery must not duplicate the items already held
	service.DiscoverNewFiles()
	assert.Len(t, service.GetAllIngests(), 2)
}

func Test_DiscoverNewFiles_HoldsRecentlyModifiedFiles(t *testing.T) {
	dir := fs.NewDir(t, "reel-ingest", fs.WithFile("fresh.mp4", "data"))
	defer dir.Remove()

	service, err := New(Config{
		IngestPaths:               []string{dir.Path()},
		RequiredModTimeAgeSeconds: 3600,
		Parallelism:               1,
	}, newFakeImporter(), &fakeStore{}, nil)
	require.NoError(t, err)
	defer service.clearAllImportHoldTimers()

	service.DiscoverNewFiles()

	items := service.GetAllIngests()
	require.Len(t, items, 1)
	assert.Equal(t, IMPORT_HOLD, items[0].State)

	service.Lock()
	assert.Contains(t, service.importHoldTimers, items[0].ID)
	service.Unlock()
}

func Test_New_RejectsFilePathAndBadBlacklist(t *testing.T) {
	dir := fs.NewDir(t, "reel-ingest", fs.WithFile("file.mp4", "data"))
	defer dir.Remove()

	_, err := New(Config{IngestPaths: []string{dir.Join("file.mp4")}}, newFakeImporter(), &fakeStore{}, nil)
	assert.Error(t, err)

	_, err = New(Config{IngestPaths: []string{dir.Path()}, Blacklist: []string{"("}}, newFakeImporter(), &fakeStore{}, nil)
	assert.Error(t, err)

	missing := filepath.Join(dir.Path(), "created", "by", "ingest")
	_, err = New(Config{IngestPaths: []string{missing}}, newFakeImporter(), &fakeStore{}, nil)
	require.NoError(t, err)
	assert.DirExists(t, missing)
}

func Test_Run_ImportsDiscoveredFiles(t *testing.T) {
	dir := fs.NewDir(t, "reel-ingest",
		fs.WithFile("one.mp4", "data"),
		fs.WithFile("two.mp4", "data"),
	)
	defer dir.Remove()

	imp := newFakeImporter()
	service, err := New(Config{IngestPaths: []string{dir.Path()}, Parallelism: 2}, imp, &fakeStore{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- service.Run(ctx) }()

	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		assert.Equal(c, []string{dir.Join("one.mp4"), dir.Join("two.mp4")}, imp.importedPaths())
		assert.Empty(c, service.GetAllIngests())
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func Test_Run_FailedImportBecomesTroubled(t *testing.T) {
	dir := fs.NewDir(t, "reel-ingest", fs.WithFile("broken.mp4", "not a video"))
	defer dir.Remove()

	imp := newFakeImporter()
	imp.setFailure(&importer.ValidationError{Path: dir.Join("broken.mp4"), Err: errors.New("not a video")})

	service, err := New(Config{IngestPaths: []string{dir.Path()}, Parallelism: 1}, imp, &fakeStore{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = service.Run(ctx) }()

	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		items := service.GetAllIngests()
		if assert.Len(c, items, 1) {
			assert.Equal(c, TROUBLED, items[0].State)
			if assert.NotNil(c, items[0].Trouble) {
				assert.Equal(c, VALIDATION_FAILURE, items[0].Trouble.Type())
			}
		}
	}, 5*time.Second, 50*time.Millisecond)

	// Resolving the trouble with a retry imports the item again
	imp.setFailure(nil)
	itemID := service.GetAllIngests()[0].ID
	require.NoError(t, service.ResolveTrouble(itemID, RETRY))

	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		assert.Equal(c, []string{dir.Join("broken.mp4")}, imp.importedPaths())
		assert.Empty(c, service.GetAllIngests())
	}, 5*time.Second, 50*time.Millisecond)

	assert.ErrorIs(t, service.ResolveTrouble(itemID, RETRY), ErrIngestNotFound)
}

func Test_ResolveTrouble_Abort(t *testing.T) {
	dir := fs.NewDir(t, "reel-ingest", fs.WithFile("clip.mp4", "data"))
	defer dir.Remove()

	service, err := New(Config{IngestPaths: []string{dir.Path()}, Parallelism: 1}, newFakeImporter(), &fakeStore{}, nil)
	require.NoError(t, err)

	service.DiscoverNewFiles()
	items := service.GetAllIngests()
	require.Len(t, items, 1)

	assert.ErrorIs(t, service.ResolveTrouble(items[0].ID, ABORT), ErrNoTrouble)

	service.Lock()
	service.items[0].State = TROUBLED
	service.items[0].Trouble = &Trouble{error: errors.New("boom"), tType: GENERIC_FAILURE}
	service.Unlock()

	require.NoError(t, service.ResolveTrouble(items[0].ID, ABORT))
	assert.Empty(t, service.GetAllIngests())
}

func Test_NewTrouble_ClassifiesImporterErrors(t *testing.T) {
	validation := newTrouble(&importer.ValidationError{Path: "/x", Err: errors.New("nope")})
	assert.Equal(t, VALIDATION_FAILURE, validation.Type())

	matching := newTrouble(&importer.MatchingError{Err: errors.New("index closed")})
	assert.Equal(t, MATCHING_FAILURE, matching.Type())

	generic := newTrouble(errors.New("db down"))
	assert.Equal(t, GENERIC_FAILURE, generic.Type())
}

func Test_HandleSceneImported_DropsPendingItemForPath(t *testing.T) {
	dir := fs.NewDir(t, "reel-ingest",
		fs.WithFile("imported.mp4", "data"),
		fs.WithFile("busy.mp4", "data"),
		fs.WithFile("other.mp4", "data"),
	)
	defer dir.Remove()

	imported := scene.New(dir.Join("imported.mp4"))
	busy := scene.New(dir.Join("busy.mp4"))
	store := &fakeStore{scenes: map[uuid.UUID]*scene.Scene{imported.ID: imported, busy.ID: busy}}

	service, err := New(Config{IngestPaths: []string{dir.Path()}, Parallelism: 1}, newFakeImporter(), store, nil)
	require.NoError(t, err)

	service.DiscoverNewFiles()
	require.Len(t, service.GetAllIngests(), 3)

	service.Lock()
	for _, item := range service.items {
		if item.Path == busy.Path {
			item.State = INGESTING
		}
	}
	service.Unlock()

	service.HandleSceneImported(event.SceneImportedEvent, imported.ID)
	service.HandleSceneImported(event.SceneImportedEvent, busy.ID)
	service.HandleSceneImported(event.SceneImportedEvent, uuid.New())

	assert.Equal(t, []string{dir.Join("busy.mp4"), dir.Join("other.mp4")}, itemPaths(service.GetAllIngests()))
}
