package scene

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/database"
	"github.com/hbomb79/Reel/pkg/logger"
)

// Matches holds the entity IDs that should be related to a scene. Studio
// is single-valued and is nil when no studio should be applied.
type Matches struct {
	Actors []uuid.UUID
	Labels []uuid.UUID
	Movies []uuid.UUID
	Studio *uuid.UUID
}

func (m Matches) Empty() bool {
	return len(m.Actors) == 0 && len(m.Labels) == 0 && len(m.Movies) == 0 && m.Studio == nil
}

func (m Matches) String() string {
	studio := "none"
	if m.Studio != nil {
		studio = m.Studio.String()
	}
	return fmt.Sprintf("Matches{actors=%d labels=%d movies=%d studio=%s}", len(m.Actors), len(m.Labels), len(m.Movies), studio)
}

// Linker applies matched entities to a scene's relationships.
type Linker struct {
	store *Store
}

func NewLinker(store *Store) *Linker {
	return &Linker{store: store}
}

// Apply merges the matches provided in to the scene. Actors, labels
// and movies are unioned with the existing relationships, so applying
// the same matches twice has no further effect. A studio match
// overwrites any existing studio.
func (linker *Linker) Apply(scene *Scene, matches Matches) {
	scene.Actors = union(scene.Actors, matches.Actors)
	scene.Labels = union(scene.Labels, matches.Labels)
	scene.Movies = union(scene.Movies, matches.Movies)
	if matches.Studio != nil {
		studio := *matches.Studio
		scene.Studio = &studio
	}
}

// Link applies the matches to the scene and persists the resulting
// relationships. The scene row must already exist. Callers should provide
// a transaction so that the scene and its relationships become visible
// to other readers at the same time.
func (linker *Linker) Link(db database.Queryable, scene *Scene, matches Matches) error {
	linker.Apply(scene, matches)
	if err := linker.store.SaveRelationships(db, scene); err != nil {
		return fmt.Errorf("failed to link %s: %w", scene, err)
	}

	log.Emit(logger.DEBUG, "Linked %s to %s\n", scene, matches)
	return nil
}

func union(existing []uuid.UUID, additions []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(existing)+len(additions))
	out := make([]uuid.UUID, 0, len(existing)+len(additions))
	for _, set := range [][]uuid.UUID{existing, additions} {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}

			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	return out
}
