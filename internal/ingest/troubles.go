package ingest

import (
	"errors"
	"fmt"

	"github.com/hbomb79/Reel/internal/importer"
)

type (
	TroubleType int

	// Trouble is attached to an ingest item when the import of
	// the item fails. The item stays in the service until the
	// trouble is resolved.
	Trouble struct {
		error
		tType TroubleType
	}

	ResolutionType int
)

const (
	VALIDATION_FAILURE TroubleType = iota
	MATCHING_FAILURE
	GENERIC_FAILURE
)

const (
	RETRY ResolutionType = iota
	ABORT
)

func newTrouble(err error) Trouble {
	var validationErr *importer.ValidationError
	var matchingErr *importer.MatchingError
	switch {
	case errors.As(err, &validationErr):
		return Trouble{error: err, tType: VALIDATION_FAILURE}
	case errors.As(err, &matchingErr):
		return Trouble{error: err, tType: MATCHING_FAILURE}
	}

	return Trouble{error: err, tType: GENERIC_FAILURE}
}

func (t Trouble) Type() TroubleType { return t.tType }

func (t Trouble) Unwrap() error { return t.error }

func (t TroubleType) String() string {
	switch t {
	case VALIDATION_FAILURE:
		return fmt.Sprintf("VALIDATION_FAILURE[%d]", t)
	case MATCHING_FAILURE:
		return fmt.Sprintf("MATCHING_FAILURE[%d]", t)
	case GENERIC_FAILURE:
		return fmt.Sprintf("GENERIC_FAILURE[%d]", t)
	default:
		return fmt.Sprintf("UNKNOWN[%d]", t)
	}
}

func (r ResolutionType) String() string {
	switch r {
	case RETRY:
		return "RETRY"
	case ABORT:
		return "ABORT"
	default:
		return fmt.Sprintf("UNKNOWN[%d]", r)
	}
}
