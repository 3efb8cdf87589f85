package scene

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scene is a catalog record representing a single imported video
// file, along with the entities it's known to relate to. A scene may
// reference at most one studio, and any number of actors, labels and movies.
type Scene struct {
	ID        uuid.UUID   `db:"id"`
	Path      string      `db:"path"`
	Studio    *uuid.UUID  `db:"studio_id"`
	Actors    []uuid.UUID `db:"-"`
	Labels    []uuid.UUID `db:"-"`
	Movies    []uuid.UUID `db:"-"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// New constructs a new scene for the path provided, with a fresh
// ID and no relationships.
func New(path string) *Scene {
	return &Scene{
		ID:     uuid.New(),
		Path:   path,
		Actors: []uuid.UUID{},
		Labels: []uuid.UUID{},
		Movies: []uuid.UUID{},
	}
}

func (scene *Scene) String() string {
	return fmt.Sprintf("Scene{ID=%s path=%s}", scene.ID, scene.Path)
}
