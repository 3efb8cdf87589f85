package scene

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/database"
	"github.com/hbomb79/Reel/internal/entity"
	"github.com/hbomb79/Reel/pkg/logger"
)

var (
	ErrNotFound = errors.New("scene does not exist")

	log = logger.Get("SceneStore")
)

// relationship describes one of the many-to-many association
// tables between scenes and an entity kind.
type relationship struct {
	kind   entity.Kind
	table  string
	column string
}

var (
	actorRelationship = relationship{entity.Actor, "scene_actors", "actor_id"}
	labelRelationship = relationship{entity.Label, "scene_labels", "label_id"}
	movieRelationship = relationship{entity.Movie, "scene_movies", "movie_id"}
)

// Store manages the scene table, and the association tables relating
// scenes to actors, labels and movies. Entities themselves are
// loaded through the entity store.
type Store struct {
	entities *entity.Store
}

func NewStore(entities *entity.Store) *Store {
	return &Store{entities: entities}
}

// Create inserts a new row for the scene provided. Relationships are
// NOT persisted by this method (see SaveRelationships).
func (store *Store) Create(db database.Queryable, scene *Scene) error {
	if err := db.QueryRowx(`
		INSERT INTO scene(id, path, studio_id, created_at, updated_at)
		VALUES ($1, $2, $3, current_timestamp, current_timestamp)
		RETURNING created_at, updated_at`,
		scene.ID, scene.Path, scene.Studio,
	).Scan(&scene.CreatedAt, &scene.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert scene %s: %w", scene, err)
	}

	return nil
}

// SaveRelationships persists the studio reference of the scene, and
// inserts association rows for all of the scenes actors, labels and
// movies. Existing associations are left untouched; this method
// never removes a relationship.
func (store *Store) SaveRelationships(db database.Queryable, scene *Scene) error {
	if _, err := db.Exec(
		`UPDATE scene SET studio_id=$2, updated_at=current_timestamp WHERE id=$1`,
		scene.ID, scene.Studio,
	); err != nil {
		return fmt.Errorf("failed to update studio of %s: %w", scene, err)
	}

	for rel, ids := range map[relationship][]uuid.UUID{
		actorRelationship: scene.Actors,
		labelRelationship: scene.Labels,
		movieRelationship: scene.Movies,
	} {
		if err := store.insertAssociations(db, rel, scene.ID, ids); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the scene with the given ID, including the IDs of
// all related entities.
func (store *Store) Get(db database.Queryable, id uuid.UUID) (*Scene, error) {
	query, args, err := selectSceneBuilder().Where("id = ?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select scene query: %w", err)
	}

	var scenes []*Scene
	if err := db.Select(&scenes, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select scene %s: %w", id, err)
	}
	if len(scenes) == 0 {
		return nil, ErrNotFound
	}

	scene := scenes[0]
	if err := store.loadRelationships(db, scene); err != nil {
		return nil, err
	}

	return scene, nil
}

// GetAll returns every scene, including the IDs of all related entities.
func (store *Store) GetAll(db database.Queryable) ([]*Scene, error) {
	query, args, err := selectSceneBuilder().OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list scenes query: %w", err)
	}

	return store.selectScenes(db, query, args...)
}

// GetForStudio returns all scenes which reference the given studio.
func (store *Store) GetForStudio(db database.Queryable, studioID uuid.UUID) ([]*Scene, error) {
	query, args, err := selectSceneBuilder().Where("studio_id = ?", studioID).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select studio scenes query: %w", err)
	}

	return store.selectScenes(db, query, args...)
}

// GetAllPaths returns the source path of every known scene.
func (store *Store) GetAllPaths(db database.Queryable) ([]string, error) {
	var paths []string
	if err := db.Select(&paths, `SELECT DISTINCT path FROM scene`); err != nil {
		return nil, fmt.Errorf("failed to select scene paths: %w", err)
	}

	return paths, nil
}

func (store *Store) GetActors(db database.Queryable, sceneID uuid.UUID) ([]*entity.Entity, error) {
	return store.getRelated(db, actorRelationship, sceneID)
}

func (store *Store) GetLabels(db database.Queryable, sceneID uuid.UUID) ([]*entity.Entity, error) {
	return store.getRelated(db, labelRelationship, sceneID)
}

func (store *Store) GetMovies(db database.Queryable, sceneID uuid.UUID) ([]*entity.Entity, error) {
	return store.getRelated(db, movieRelationship, sceneID)
}

// GetStudio returns the studio referenced by the scene, or nil if
// the scene has no studio.
func (store *Store) GetStudio(db database.Queryable, sceneID uuid.UUID) (*entity.Entity, error) {
	var studioID *uuid.UUID
	if err := db.Get(&studioID, `SELECT studio_id FROM scene WHERE id=$1`, sceneID); err != nil {
		return nil, fmt.Errorf("failed to select studio of scene %s: %w", sceneID, err)
	}
	if studioID == nil {
		return nil, nil
	}

	return store.entities.GetByID(db, entity.Studio, *studioID)
}

func (store *Store) selectScenes(db database.Queryable, query string, args ...any) ([]*Scene, error) {
	var scenes []*Scene
	if err := db.Select(&scenes, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select scenes: %w", err)
	}

	for _, scene := range scenes {
		if err := store.loadRelationships(db, scene); err != nil {
			return nil, err
		}
	}

	return scenes, nil
}

func (store *Store) loadRelationships(db database.Queryable, scene *Scene) error {
	var err error
	if scene.Actors, err = store.getRelatedIDs(db, actorRelationship, scene.ID); err != nil {
		return err
	}
	if scene.Labels, err = store.getRelatedIDs(db, labelRelationship, scene.ID); err != nil {
		return err
	}
	if scene.Movies, err = store.getRelatedIDs(db, movieRelationship, scene.ID); err != nil {
		return err
	}

	return nil
}

func (store *Store) getRelated(db database.Queryable, rel relationship, sceneID uuid.UUID) ([]*entity.Entity, error) {
	ids, err := store.getRelatedIDs(db, rel, sceneID)
	if err != nil {
		return nil, err
	}

	return store.entities.GetMany(db, rel.kind, ids...)
}

func (store *Store) getRelatedIDs(db database.Queryable, rel relationship, sceneID uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	if err := db.Select(&ids, relationshipSQL(`SELECT TABLECOLUMN FROM TABLENAME WHERE scene_id=$1`, rel), sceneID); err != nil {
		return nil, fmt.Errorf("failed to select %s of scene %s: %w", rel.table, sceneID, err)
	}

	return ids, nil
}

// insertAssociations inserts a row in the relationship table for each
// of the IDs provided. Rows which already exist are ignored.
func (store *Store) insertAssociations(db database.Queryable, rel relationship, sceneID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	type assoc struct {
		SceneID  uuid.UUID `db:"scene_id"`
		EntityID uuid.UUID `db:"entity_id"`
	}
	assocs := make([]assoc, len(ids))
	for k, v := range ids {
		assocs[k] = assoc{sceneID, v}
	}

	_, err := db.NamedExec(relationshipSQL(`
		INSERT INTO TABLENAME(scene_id, TABLECOLUMN)
		VALUES(:scene_id, :entity_id)
		ON CONFLICT(scene_id, TABLECOLUMN) DO NOTHING`, rel), assocs)
	if err != nil {
		return fmt.Errorf("failed to insert %s for scene %s: %w", rel.table, sceneID, err)
	}

	return nil
}

func selectSceneBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select("id", "path", "studio_id", "created_at", "updated_at").
		From("scene")
}

func relationshipSQL(template string, rel relationship) string {
	return strings.ReplaceAll(strings.ReplaceAll(template, "TABLENAME", rel.table), "TABLECOLUMN", rel.column)
}
