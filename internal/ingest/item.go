package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/pkg/logger"
)

type (
	IngestItemState int
	IngestItem      struct {
		ID      uuid.UUID
		Path    string
		State   IngestItemState
		Trouble *Trouble
	}
)

const (
	IDLE IngestItemState = iota
	IMPORT_HOLD
	INGESTING
	TROUBLED
	COMPLETE
)

var (
	ErrNoTrouble      = errors.New("ingestion has no trouble")
	ErrIngestNotFound = errors.New("no ingest task could be found")
	ErrIngestBusy     = errors.New("ingest task is currently being imported")
)

// ingest imports the file referenced by this item as a new scene,
// with path matching enabled.
func (item *IngestItem) ingest(ctx context.Context, importer sceneImporter) (uuid.UUID, error) {
	log.Emit(logger.NEW, "Beginning ingestion of item %s\n", item)

	scene, err := importer.Import(ctx, item.Path, true)
	if err != nil {
		return uuid.Nil, err
	}

	log.Emit(logger.SUCCESS, "Ingested item %s as %s\n", item, scene)
	return scene.ID, nil
}

func (item *IngestItem) modtimeDiff() (time.Duration, error) {
	itemInfo, err := os.Stat(item.Path)
	if err != nil {
		return 0, err
	}

	return time.Since(itemInfo.ModTime()), nil
}

func (item *IngestItem) String() string {
	return fmt.Sprintf("IngestItem{ID=%s path=%s state=%s}", item.ID, item.Path, item.State)
}

func (s IngestItemState) String() string {
	switch s {
	case IDLE:
		return fmt.Sprintf("IDLE[%d]", s)
	case IMPORT_HOLD:
		return fmt.Sprintf("IMPORT_HOLD[%d]", s)
	case INGESTING:
		return fmt.Sprintf("INGESTING[%d]", s)
	case TROUBLED:
		return fmt.Sprintf("TROUBLED[%d]", s)
	case COMPLETE:
		return fmt.Sprintf("COMPLETE[%d]", s)
	default:
		return fmt.Sprintf("UNKNOWN[%d]", s)
	}
}
