package internal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/database"
	"github.com/hbomb79/Reel/internal/entity"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/scene"
	"github.com/hbomb79/Reel/internal/search"
	"github.com/jmoiron/sqlx"
)

type (
	// dataOrchestrator is responsible for managing all of Reel's resources,
	// especially highly-relational data. You can think of all
	// the data stores below this layer being 'dumb', and this store
	// linking them together and providing the database instance.
	//
	// The orchestrator is also the ONLY place that writes entities, which
	// allows it to keep the entity index in sync: every successful entity
	// write is followed by an explicit index call.
	dataOrchestrator struct {
		db          database.Manager
		index       *search.Index
		eventBus    event.EventDispatcher
		EntityStore *entity.Store
		SceneStore  *scene.Store
		Linker      *scene.Linker
	}
)

func newDataOrchestrator(db database.Manager, index *search.Index, eventBus event.EventDispatcher) *dataOrchestrator {
	entities := &entity.Store{}
	scenes := scene.NewStore(entities)

	return &dataOrchestrator{
		db:          db,
		index:       index,
		eventBus:    eventBus,
		EntityStore: entities,
		SceneStore:  scenes,
		Linker:      scene.NewLinker(scenes),
	}
}

// RebuildIndexes loads every entity from the database and replaces
// the contents of the entity index with them. This is performed on startup
// so that imports can match against entities created in prior runs.
func (data *dataOrchestrator) RebuildIndexes() error {
	for _, kind := range entity.AllKinds {
		all, err := data.EntityStore.GetAll(data.db.GetSqlxDB(), kind)
		if err != nil {
			return fmt.Errorf("failed to load %s entities for indexing: %w", kind, err)
		}

		if err := data.index.Reset(kind, all...); err != nil {
			return fmt.Errorf("failed to index %s entities: %w", kind, err)
		}

		log.Infof("Indexed %d %s entities\n", len(all), kind)
	}

	return nil
}

// SaveEntity transactionally upserts the entity, and then updates
// the entity index to reflect the change.
func (data *dataOrchestrator) SaveEntity(ctx context.Context, kind entity.Kind, e *entity.Entity) error {
	if err := data.db.WrapTx(ctx, func(tx *sqlx.Tx) error {
		return data.EntityStore.Upsert(tx, kind, e)
	}); err != nil {
		return err
	}

	if err := data.index.Index(kind, e); err != nil {
		return fmt.Errorf("entity %s saved, but indexing failed: %w", e, err)
	}

	data.dispatch(event.EntityUpdateEvent, e.ID)
	return nil
}

// DeleteEntity removes the entity from the database, and from the entity index.
func (data *dataOrchestrator) DeleteEntity(ctx context.Context, kind entity.Kind, id uuid.UUID) error {
	if err := data.db.WrapTx(ctx, func(tx *sqlx.Tx) error {
		return data.EntityStore.Delete(tx, kind, id)
	}); err != nil {
		return err
	}

	if err := data.index.Remove(kind, id); err != nil {
		return err
	}

	data.dispatch(event.EntityDeleteEvent, id)
	return nil
}

func (data *dataOrchestrator) GetEntity(kind entity.Kind, id uuid.UUID) (*entity.Entity, error) {
	return data.EntityStore.GetByID(data.db.GetSqlxDB(), kind, id)
}

func (data *dataOrchestrator) GetAllEntities(kind entity.Kind) ([]*entity.Entity, error) {
	return data.EntityStore.GetAll(data.db.GetSqlxDB(), kind)
}

// SaveImportedScene transactionally creates the scene, and links it with
// the matched entities provided. If any part fails, nothing is persisted.
func (data *dataOrchestrator) SaveImportedScene(ctx context.Context, sc *scene.Scene, matches scene.Matches) error {
	return data.db.WrapTx(ctx, func(tx *sqlx.Tx) error {
		if err := data.SceneStore.Create(tx, sc); err != nil {
			return err
		}

		return data.Linker.Link(tx, sc, matches)
	})
}

func (data *dataOrchestrator) GetScene(id uuid.UUID) (*scene.Scene, error) {
	return data.SceneStore.Get(data.db.GetSqlxDB(), id)
}

func (data *dataOrchestrator) GetAllScenes() ([]*scene.Scene, error) {
	return data.SceneStore.GetAll(data.db.GetSqlxDB())
}

func (data *dataOrchestrator) GetSceneRelated(kind entity.Kind, sceneID uuid.UUID) ([]*entity.Entity, error) {
	db := data.db.GetSqlxDB()
	switch kind {
	case entity.Actor:
		return data.SceneStore.GetActors(db, sceneID)
	case entity.Label:
		return data.SceneStore.GetLabels(db, sceneID)
	case entity.Movie:
		return data.SceneStore.GetMovies(db, sceneID)
	case entity.Studio:
		studio, err := data.SceneStore.GetStudio(db, sceneID)
		if err != nil || studio == nil {
			return []*entity.Entity{}, err
		}

		return []*entity.Entity{studio}, nil
	}

	return nil, entity.ErrBadKind
}

func (data *dataOrchestrator) GetScenesForStudio(studioID uuid.UUID) ([]*scene.Scene, error) {
	return data.SceneStore.GetForStudio(data.db.GetSqlxDB(), studioID)
}

func (data *dataOrchestrator) GetAllScenePaths() ([]string, error) {
	return data.SceneStore.GetAllPaths(data.db.GetSqlxDB())
}

// WrapTx runs the function provided inside of a database transaction.
func (data *dataOrchestrator) WrapTx(ctx context.Context, f func(*sqlx.Tx) error) error {
	return data.db.WrapTx(ctx, f)
}

func (data *dataOrchestrator) dispatch(ev event.Event, id uuid.UUID) {
	if data.eventBus != nil {
		data.eventBus.Dispatch(ev, id)
	}
}
