package importer

import (
	"fmt"

	"github.com/hbomb79/Reel/internal/entity"
)

type (
	// ValidationError is returned when the path provided to an import
	// does not reference a readable, recognised video file. No scene is
	// created when this error is returned.
	ValidationError struct {
		Path string
		Err  error
	}

	// MatchingError is returned when the entity index could not be
	// queried while extracting relationships from a path. The import
	// fails as a whole; no scene is created.
	MatchingError struct {
		Kind entity.Kind
		Err  error
	}
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("path %s is not importable: %s", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *MatchingError) Error() string {
	return fmt.Sprintf("failed to match %s entities: %s", e.Kind, e.Err)
}

func (e *MatchingError) Unwrap() error { return e.Err }
