package entity

import (
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/database"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("entity does not exist")
	ErrBadKind  = errors.New("entity kind is not valid")

	log = logger.Get("EntityStore")
)

type (
	// entityModel is the DB representation of an Entity, using a
	// JsonColumn for the aliases.
	entityModel struct {
		Entity
		Aliases database.JsonColumn[[]string] `db:"aliases"`
	}

	// Store manages the actor, label, studio and movie tables. As all
	// four share the same shape, the kind provided to each method
	// selects the table to operate on.
	Store struct{}
)

// Upsert inserts the entity provided, or updates the name and aliases
// of the existing row with the same ID. The CreatedAt/UpdatedAt
// of the entity are refreshed from the DB.
func (store *Store) Upsert(db database.Queryable, kind Kind, entity *Entity) error {
	if !kind.Valid() {
		return ErrBadKind
	}

	aliases := entity.Aliases
	if aliases == nil {
		aliases = []string{}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s(id, name, aliases, created_at, updated_at)
		VALUES ($1, $2, $3, current_timestamp, current_timestamp)
		ON CONFLICT(id) DO UPDATE
		SET (name, aliases, updated_at) = (EXCLUDED.name, EXCLUDED.aliases, current_timestamp)
		RETURNING created_at, updated_at`, kind.Table())

	if err := db.QueryRowx(query, entity.ID, entity.Name, database.NewJsonColumn(aliases)).
		Scan(&entity.CreatedAt, &entity.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", kind, entity.ID, err)
	}

	entity.Kind = kind
	log.Emit(logger.DEBUG, "Upserted %s\n", entity)
	return nil
}

// GetAll returns every entity of the given kind, ordered by
// creation time.
func (store *Store) GetAll(db database.Queryable, kind Kind) ([]*Entity, error) {
	if !kind.Valid() {
		return nil, ErrBadKind
	}

	query, args, err := selectBuilder(kind).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list %s query: %w", kind, err)
	}

	return store.selectEntities(db, kind, query, args...)
}

// GetByID returns the entity of the given kind with the matching ID,
// or ErrNotFound.
func (store *Store) GetByID(db database.Queryable, kind Kind, id uuid.UUID) (*Entity, error) {
	if !kind.Valid() {
		return nil, ErrBadKind
	}

	query, args, err := selectBuilder(kind).Where("id = ?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select %s query: %w", kind, err)
	}

	results, err := store.selectEntities(db, kind, query, args...)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	return results[0], nil
}

// GetMany returns all entities of the given kind whose ID is
// contained in the IDs provided. IDs which have no matching row
// are silently ignored.
func (store *Store) GetMany(db database.Queryable, kind Kind, ids ...uuid.UUID) ([]*Entity, error) {
	if !kind.Valid() {
		return nil, ErrBadKind
	}
	if len(ids) == 0 {
		return []*Entity{}, nil
	}

	query, args, err := selectBuilder(kind).Where("id = ANY(?)", pq.Array(idStrings(ids))).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select many %s query: %w", kind, err)
	}

	return store.selectEntities(db, kind, query, args...)
}

// Delete removes the entity of the given kind. Associations
// with scenes are removed via cascade.
func (store *Store) Delete(db database.Queryable, kind Kind, id uuid.UUID) error {
	if !kind.Valid() {
		return ErrBadKind
	}

	_, err := db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, kind.Table()), id)
	return err
}

func (store *Store) selectEntities(db database.Queryable, kind Kind, query string, args ...any) ([]*Entity, error) {
	var results []entityModel
	if err := db.Select(&results, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select %s rows: %w", kind, err)
	}

	output := make([]*Entity, len(results))
	for k, v := range results {
		output[k] = modelToEntity(kind, &v)
	}

	return output, nil
}

func selectBuilder(kind Kind) squirrel.SelectBuilder {
	return squirrel.
		Select("id", "name", "aliases", "created_at", "updated_at").
		From(kind.Table())
}

func modelToEntity(kind Kind, model *entityModel) *Entity {
	e := model.Entity
	e.Kind = kind
	if aliases := model.Aliases.Get(); *aliases != nil {
		e.Aliases = *aliases
	} else {
		e.Aliases = []string{}
	}

	return &e
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	return out
}
