package importer_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/entity"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/importer"
	"github.com/hbomb79/Reel/internal/match"
	"github.com/hbomb79/Reel/internal/scene"
	"github.com/hbomb79/Reel/internal/search"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
}

const scenarioPath = "/library/..._abc_actor_def_label_ghi_studio_jkl_movie.mp4"

type mockValidator struct {
	mock.Mock
}

func (mock *mockValidator) Validate(path string) error {
	args := mock.Called(path)
	return args.Error(0)
}

type mockCandidateSource struct {
	mock.Mock
}

func (mock *mockCandidateSource) Candidates(kind entity.Kind) ([]match.Candidate, error) {
	args := mock.Called(kind)
	if v, ok := args.Get(0).([]match.Candidate); ok {
		return v, args.Error(1)
	}

	return nil, args.Error(1)
}

// memoryStore persists scenes in memory, applying matches using the
// relationship linker in the same way the database store does.
type memoryStore struct {
	*sync.Mutex
	linker *scene.Linker
	scenes map[uuid.UUID]*scene.Scene
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{Mutex: &sync.Mutex{}, linker: scene.NewLinker(nil), scenes: make(map[uuid.UUID]*scene.Scene)}
}

func (store *memoryStore) SaveImportedScene(_ context.Context, sc *scene.Scene, matches scene.Matches) error {
	store.Lock()
	defer store.Unlock()

	if store.err != nil {
		return store.err
	}

	store.linker.Apply(sc, matches)
	store.scenes[sc.ID] = sc
	return nil
}

func (store *memoryStore) scenesForPath(path string) []*scene.Scene {
	store.Lock()
	defer store.Unlock()

	out := make([]*scene.Scene, 0)
	for _, sc := range store.scenes {
		if sc.Path == path {
			out = append(out, sc)
		}
	}
	return out
}

type fixture struct {
	actor, label, studio, movie *entity.Entity
	index                       *search.Index
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		actor:  entity.New(entity.Actor, "abc actor"),
		label:  entity.New(entity.Label, "def label"),
		studio: entity.New(entity.Studio, "ghi studio"),
		movie:  entity.New(entity.Movie, "jkl movie"),
		index:  search.New(),
	}

	require.NoError(t, f.index.Index(entity.Actor, f.actor))
	require.NoError(t, f.index.Index(entity.Label, f.label))
	require.NoError(t, f.index.Index(entity.Studio, f.studio))
	require.NoError(t, f.index.Index(entity.Movie, f.movie))
	return f
}

func allFlags(enabled bool) importer.MatchingConfig {
	return importer.MatchingConfig{
		ExtractSceneActorsFromFilepath:  enabled,
		ExtractSceneLabelsFromFilepath:  enabled,
		ExtractSceneMoviesFromFilepath:  enabled,
		ExtractSceneStudiosFromFilepath: enabled,
	}
}

func acceptingValidator() *mockValidator {
	v := new(mockValidator)
	v.On("Validate", mock.Anything).Return(nil)
	return v
}

func assertNoRelationships(t *testing.T, sc *scene.Scene) {
	t.Helper()
	assert.Empty(t, sc.Actors)
	assert.Empty(t, sc.Labels)
	assert.Empty(t, sc.Movies)
	assert.Nil(t, sc.Studio)
}

func Test_Import_NoEntityTokens(t *testing.T) {
	store := newMemoryStore()
	service := importer.New(importer.Config{Matching: allFlags(false)}, acceptingValidator(), search.New(), store, nil)

	sc, err := service.Import(context.Background(), "video001.mp4", false)
	require.NoError(t, err)
	require.NotNil(t, sc)

	abs, _ := filepath.Abs("video001.mp4")
	assert.Equal(t, abs, sc.Path)
	assertNoRelationships(t, sc)
	assert.Len(t, store.scenesForPath(abs), 1)
}

func Test_Import_MatchesAllKinds(t *testing.T) {
	f := newFixture(t)
	store := newMemoryStore()
	service := importer.New(importer.Config{Matching: allFlags(true)}, acceptingValidator(), f.index, store, nil)

	sc, err := service.Import(context.Background(), scenarioPath, true)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{f.actor.ID}, sc.Actors)
	assert.Equal(t, []uuid.UUID{f.label.ID}, sc.Labels)
	assert.Equal(t, []uuid.UUID{f.movie.ID}, sc.Movies)
	require.NotNil(t, sc.Studio)
	assert.Equal(t, f.studio.ID, *sc.Studio)

	// The returned scene is the persisted scene
	persisted := store.scenesForPath(scenarioPath)
	require.Len(t, persisted, 1)
	assert.Equal(t, sc, persisted[0])
}

func Test_Import_CallerOverrideDisablesMatching(t *testing.T) {
	f := newFixture(t)
	service := importer.New(importer.Config{Matching: allFlags(true)}, acceptingValidator(), f.index, newMemoryStore(), nil)

	sc, err := service.Import(context.Background(), scenarioPath, false)
	require.NoError(t, err)
	assertNoRelationships(t, sc)
}

func Test_Import_DisabledFlagsDisableMatching(t *testing.T) {
	f := newFixture(t)
	service := importer.New(importer.Config{Matching: allFlags(false)}, acceptingValidator(), f.index, newMemoryStore(), nil)

	sc, err := service.Import(context.Background(), scenarioPath, true)
	require.NoError(t, err)
	assertNoRelationships(t, sc)
}

func Test_Import_MissingFileIsRejected(t *testing.T) {
	store := newMemoryStore()
	missing := filepath.Join(t.TempDir(), "does-not-exist.mp4")

	validator := new(mockValidator)
	validator.On("Validate", missing).Return(errors.New("cannot stat"))
	service := importer.New(importer.Config{Matching: allFlags(true)}, validator, search.New(), store, nil)

	sc, err := service.Import(context.Background(), missing, true)
	assert.Nil(t, sc)

	var validationErr *importer.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, missing, validationErr.Path)
	assert.Empty(t, store.scenesForPath(missing))
	validator.AssertExpectations(t)
}

// For every combination of the four flags and the caller override, the
// relationships for a kind are populated if and only if both the override
// and the flag for that kind are enabled.
func Test_Import_ExtractionRequiresOverrideAndFlag(t *testing.T) {
	f := newFixture(t)

	for mask := 0; mask < 16; mask++ {
		flags := importer.MatchingConfig{
			ExtractSceneActorsFromFilepath:  mask&1 != 0,
			ExtractSceneLabelsFromFilepath:  mask&2 != 0,
			ExtractSceneMoviesFromFilepath:  mask&4 != 0,
			ExtractSceneStudiosFromFilepath: mask&8 != 0,
		}

		for _, useMatching := range []bool{true, false} {
			t.Run(fmt.Sprintf("flags=%04b/useMatching=%v", mask, useMatching), func(t *testing.T) {
				service := importer.New(importer.Config{Matching: flags}, acceptingValidator(), f.index, newMemoryStore(), nil)
				sc, err := service.Import(context.Background(), scenarioPath, useMatching)
				require.NoError(t, err)

				assert.Equal(t, useMatching && flags.ExtractSceneActorsFromFilepath, len(sc.Actors) == 1)
				assert.Equal(t, useMatching && flags.ExtractSceneLabelsFromFilepath, len(sc.Labels) == 1)
				assert.Equal(t, useMatching && flags.ExtractSceneMoviesFromFilepath, len(sc.Movies) == 1)
				assert.Equal(t, useMatching && flags.ExtractSceneStudiosFromFilepath, sc.Studio != nil)
			})
		}
	}
}

func Test_Import_IndexFailureFailsImport(t *testing.T) {
	source := new(mockCandidateSource)
	source.On("Candidates", entity.Actor).Return([]match.Candidate{}, nil)
	source.On("Candidates", entity.Label).Return(nil, search.ErrClosed)

	store := newMemoryStore()
	service := importer.New(importer.Config{Matching: allFlags(true)}, acceptingValidator(), source, store, nil)

	sc, err := service.Import(context.Background(), scenarioPath, true)
	assert.Nil(t, sc)

	var matchingErr *importer.MatchingError
	require.ErrorAs(t, err, &matchingErr)
	assert.Equal(t, entity.Label, matchingErr.Kind)
	assert.ErrorIs(t, err, search.ErrClosed)
	assert.Empty(t, store.scenesForPath(scenarioPath))
}

func Test_Import_PersistenceFailurePropagates(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection reset")

	bus := event.New()
	dispatched := 0
	bus.RegisterHandlerFunction(event.SceneImportedEvent, func(event.Event, event.Payload) { dispatched++ })

	service := importer.New(importer.Config{Matching: allFlags(true)}, acceptingValidator(), search.New(), store, bus)
	sc, err := service.Import(context.Background(), "/library/clip.mp4", true)
	assert.Nil(t, sc)
	assert.ErrorIs(t, err, store.err)
	assert.Zero(t, dispatched)
}

func Test_Import_DispatchesImportedEvent(t *testing.T) {
	bus := event.New()
	payloads := make([]event.Payload, 0)
	bus.RegisterHandlerFunction(event.SceneImportedEvent, func(_ event.Event, payload event.Payload) {
		payloads = append(payloads, payload)
	})

	service := importer.New(importer.Config{}, acceptingValidator(), search.New(), newMemoryStore(), bus)
	sc, err := service.Import(context.Background(), "/library/clip.mp4", false)
	require.NoError(t, err)
	assert.Equal(t, []event.Payload{sc.ID}, payloads)
}

func Test_ImportMany_IndependentResultsInOrder(t *testing.T) {
	f := newFixture(t)
	paths := []string{
		"/library/abc actor/one.mp4",
		"/library/broken.mp4",
		"/library/ghi studio/two.mp4",
		"/library/three.mp4",
	}

	validator := new(mockValidator)
	validator.On("Validate", "/library/broken.mp4").Return(errors.New("not a video"))
	validator.On("Validate", mock.Anything).Return(nil)

	store := newMemoryStore()
	service := importer.New(importer.Config{Matching: allFlags(true), Parallelism: 2}, validator, f.index, store, nil)

	results := service.ImportMany(context.Background(), paths, true)
	require.Len(t, results, len(paths))
	for i, result := range results {
		assert.Equal(t, paths[i], result.Path)
	}

	assert.ErrorAs(t, results[1].Err, new(*importer.ValidationError))
	assert.Nil(t, results[1].Scene)

	require.NoError(t, results[0].Err)
	assert.Equal(t, []uuid.UUID{f.actor.ID}, results[0].Scene.Actors)
	require.NoError(t, results[2].Err)
	require.NotNil(t, results[2].Scene.Studio)
	assert.Equal(t, f.studio.ID, *results[2].Scene.Studio)
	require.NoError(t, results[3].Err)
	assertNoRelationships(t, results[3].Scene)

	assert.Len(t, store.scenes, 3)
}

func Test_Import_SamePathIsNotDeduplicated(t *testing.T) {
	store := newMemoryStore()
	service := importer.New(importer.Config{}, acceptingValidator(), search.New(), store, nil)

	first, err := service.Import(context.Background(), "/library/clip.mp4", false)
	require.NoError(t, err)
	second, err := service.Import(context.Background(), "/library/clip.mp4", false)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, store.scenesForPath("/library/clip.mp4"), 2)
}
