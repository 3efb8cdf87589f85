package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/api"
	"github.com/hbomb79/Reel/internal/entity"
	"github.com/hbomb79/Reel/internal/importer"
	"github.com/hbomb79/Reel/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	*sync.Mutex
	entities map[uuid.UUID]*entity.Entity
	scenes   map[uuid.UUID]*scene.Scene
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		Mutex:    &sync.Mutex{},
		entities: make(map[uuid.UUID]*entity.Entity),
		scenes:   make(map[uuid.UUID]*scene.Scene),
	}
}

func (store *memoryStore) SaveEntity(_ context.Context, kind entity.Kind, e *entity.Entity) error {
	store.Lock()
	defer store.Unlock()
	e.Kind = kind
	store.entities[e.ID] = e
	return nil
}

func (store *memoryStore) DeleteEntity(_ context.Context, kind entity.Kind, id uuid.UUID) error {
	store.Lock()
	defer store.Unlock()
	if e, ok := store.entities[id]; !ok || e.Kind != kind {
		return entity.ErrNotFound
	}
	delete(store.entities, id)
	return nil
}

func (store *memoryStore) GetEntity(kind entity.Kind, id uuid.UUID) (*entity.Entity, error) {
	store.Lock()
	defer store.Unlock()
	if e, ok := store.entities[id]; ok && e.Kind == kind {
		cpy := *e
		return &cpy, nil
	}
	return nil, entity.ErrNotFound
}

func (store *memoryStore) GetAllEntities(kind entity.Kind) ([]*entity.Entity, error) {
	store.Lock()
	defer store.Unlock()
	out := make([]*entity.Entity, 0)
	for _, e := range store.entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

func (store *memoryStore) GetScenesForStudio(studioID uuid.UUID) ([]*scene.Scene, error) {
	store.Lock()
	defer store.Unlock()
	out := make([]*scene.Scene, 0)
	for _, sc := range store.scenes {
		if sc.Studio != nil && *sc.Studio == studioID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (store *memoryStore) GetScene(id uuid.UUID) (*scene.Scene, error) {
	store.Lock()
	defer store.Unlock()
	if sc, ok := store.scenes[id]; ok {
		return sc, nil
	}
	return nil, scene.ErrNotFound
}

func (store *memoryStore) GetAllScenes() ([]*scene.Scene, error) {
	store.Lock()
	defer store.Unlock()
	out := make([]*scene.Scene, 0, len(store.scenes))
	for _, sc := range store.scenes {
		out = append(out, sc)
	}
	return out, nil
}

func (store *memoryStore) GetSceneRelated(kind entity.Kind, sceneID uuid.UUID) ([]*entity.Entity, error) {
	store.Lock()
	defer store.Unlock()
	sc, ok := store.scenes[sceneID]
	if !ok {
		return nil, scene.ErrNotFound
	}

	var ids []uuid.UUID
	switch kind {
	case entity.Actor:
		ids = sc.Actors
	case entity.Label:
		ids = sc.Labels
	case entity.Movie:
		ids = sc.Movies
	case entity.Studio:
		if sc.Studio != nil {
			ids = []uuid.UUID{*sc.Studio}
		}
	}

	out := make([]*entity.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, store.entities[id])
	}
	return out, nil
}

type stubImporter struct {
	failures map[string]error
}

func (imp *stubImporter) ImportMany(_ context.Context, paths []string, _ bool) []importer.Result {
	results := make([]importer.Result, len(paths))
	for i, path := range paths {
		if err, ok := imp.failures[path]; ok {
			results[i] = importer.Result{Path: path, Err: err}
			continue
		}
		results[i] = importer.Result{Path: path, Scene: scene.New(path)}
	}
	return results
}

func newGateway(store *memoryStore, imp *stubImporter) http.Handler {
	return api.NewRestGateway(&api.RestConfig{}, imp, nil, store).Handler()
}

func perform(t *testing.T, handler http.Handler, method string, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func Test_CreateAndGetEntity(t *testing.T) {
	store := newMemoryStore()
	handler := newGateway(store, &stubImporter{})

	rec := perform(t, handler, http.MethodPost, "/api/reel/v1/actors/", `{"name":"Jane Doe","aliases":["JD"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID      uuid.UUID `json:"id"`
		Name    string    `json:"name"`
		Aliases []string  `json:"aliases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Jane Doe", created.Name)
	assert.Equal(t, []string{"JD"}, created.Aliases)

	stored, err := store.GetEntity(entity.Actor, created.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.Actor, stored.Kind)

	rec = perform(t, handler, http.MethodGet, "/api/reel/v1/actors/"+created.ID.String()+"/", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// The same ID is not an entity of a different kind
	rec = perform(t, handler, http.MethodGet, "/api/reel/v1/labels/"+created.ID.String()+"/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_CreateEntity_RejectsInvalidBody(t *testing.T) {
	handler := newGateway(newMemoryStore(), &stubImporter{})

	rec := perform(t, handler, http.MethodPost, "/api/reel/v1/studios/", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = perform(t, handler, http.MethodPost, "/api/reel/v1/studios/", `{"name":"Studio One","aliases":[""]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = perform(t, handler, http.MethodGet, "/api/reel/v1/studios/not-a-uuid/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_UpdateEntity(t *testing.T) {
	store := newMemoryStore()
	handler := newGateway(store, &stubImporter{})

	label := entity.New(entity.Label, "Outdoor")
	require.NoError(t, store.SaveEntity(context.Background(), entity.Label, label))

	rec := perform(t, handler, http.MethodPatch, "/api/reel/v1/labels/"+label.ID.String()+"/", `{"aliases":["outside"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := store.GetEntity(entity.Label, label.ID)
	require.NoError(t, err)
	assert.Equal(t, "Outdoor", stored.Name)
	assert.Equal(t, []string{"outside"}, stored.Aliases)
}

func Test_ListStudioScenes(t *testing.T) {
	store := newMemoryStore()
	handler := newGateway(store, &stubImporter{})

	studio := entity.New(entity.Studio, "Studio One")
	require.NoError(t, store.SaveEntity(context.Background(), entity.Studio, studio))

	sc := scene.New("/videos/studio one/a.mp4")
	sc.Studio = &studio.ID
	store.scenes[sc.ID] = sc
	other := scene.New("/videos/b.mp4")
	store.scenes[other.ID] = other

	rec := perform(t, handler, http.MethodGet, "/api/reel/v1/studios/"+studio.ID.String()+"/scenes/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var scenes []struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scenes))
	require.Len(t, scenes, 1)
	assert.Equal(t, sc.ID, scenes[0].ID)
}

func Test_ImportScenes_ReportsPartialFailure(t *testing.T) {
	imp := &stubImporter{failures: map[string]error{
		"/videos/notes.txt": &importer.ValidationError{Path: "/videos/notes.txt", Err: errors.New("not a video")},
	}}
	handler := newGateway(newMemoryStore(), imp)

	rec := perform(t, handler, http.MethodPost, "/api/reel/v1/scenes/import/", `{"paths":["/videos/a.mp4","/videos/notes.txt"],"match":true}`)
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())

	var results []struct {
		Path  string `json:"path"`
		Scene *struct {
			Path string `json:"path"`
		} `json:"scene"`
		Error *struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)

	assert.Equal(t, "/videos/a.mp4", results[0].Path)
	require.NotNil(t, results[0].Scene)
	assert.Nil(t, results[0].Error)

	assert.Equal(t, "/videos/notes.txt", results[1].Path)
	assert.Nil(t, results[1].Scene)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, "VALIDATION_FAILURE", results[1].Error.Type)

	rec = perform(t, handler, http.MethodPost, "/api/reel/v1/scenes/import/", `{"paths":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_GetSceneRelated(t *testing.T) {
	store := newMemoryStore()
	handler := newGateway(store, &stubImporter{})

	actor := entity.New(entity.Actor, "Jane Doe")
	require.NoError(t, store.SaveEntity(context.Background(), entity.Actor, actor))
	sc := scene.New("/videos/jane doe.mp4")
	sc.Actors = []uuid.UUID{actor.ID}
	store.scenes[sc.ID] = sc

	rec := perform(t, handler, http.MethodGet, "/api/reel/v1/scenes/"+sc.ID.String()+"/actors/", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Jane Doe")

	rec = perform(t, handler, http.MethodGet, "/api/reel/v1/scenes/"+sc.ID.String()+"/unknown/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = perform(t, handler, http.MethodGet, "/api/reel/v1/scenes/"+uuid.NewString()+"/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
