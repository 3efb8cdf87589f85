package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type (
	// Kind identifies which collection an Entity belongs to. Each
	// kind is stored in its own table, but all kinds share the
	// same shape.
	Kind int

	// Entity is a named record which a Scene may reference (an
	// actor, label, studio or movie). Aliases are alternative
	// names for the entity which are also considered when matching
	// the entity against file paths.
	Entity struct {
		ID        uuid.UUID `db:"id"`
		Kind      Kind      `db:"-"`
		Name      string    `db:"name"`
		Aliases   []string  `db:"-"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

const (
	Actor Kind = iota
	Label
	Studio
	Movie
)

// AllKinds lists every entity kind, in the order imports
// perform their matching.
var AllKinds = []Kind{Actor, Label, Studio, Movie}

// New constructs a new Entity of the given kind with a fresh ID.
func New(kind Kind, name string, aliases ...string) *Entity {
	return &Entity{
		ID:      uuid.New(),
		Kind:    kind,
		Name:    name,
		Aliases: aliases,
	}
}

// Names returns the primary name of the entity, followed by
// any aliases.
func (e *Entity) Names() []string {
	return append([]string{e.Name}, e.Aliases...)
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s{ID=%s name=%q}", e.Kind, e.ID, e.Name)
}

func (k Kind) String() string {
	switch k {
	case Actor:
		return "actor"
	case Label:
		return "label"
	case Studio:
		return "studio"
	case Movie:
		return "movie"
	default:
		return fmt.Sprintf("UNKNOWN[%d]", int(k))
	}
}

// Table returns the name of the table that stores entities
// of this kind.
func (k Kind) Table() string { return k.String() }

// Valid returns true if the kind is one of the known kinds.
func (k Kind) Valid() bool { return k >= Actor && k <= Movie }

// ParseKind accepts the plural or singular name of an
// entity kind ("actors" or "actor") and returns the Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "actor", "actors":
		return Actor, nil
	case "label", "labels":
		return Label, nil
	case "studio", "studios":
		return Studio, nil
	case "movie", "movies":
		return Movie, nil
	}

	return -1, fmt.Errorf("entity kind %q not recognised", s)
}
