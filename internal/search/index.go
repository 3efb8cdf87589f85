// Package search maintains the queryable projection of the entity
// collections which the importer uses to find match candidates.
//
// The index is NOT coupled to the entity store's write path: whoever
// mutates an entity must also call Index (or Remove) so the projection
// stays in sync.
package search

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/entity"
	"github.com/hbomb79/Reel/internal/match"
	"github.com/hbomb79/Reel/pkg/logger"
)

var (
	ErrClosed = errors.New("entity index is closed")

	log = logger.Get("EntityIndex")
)

type (
	// Indexer is the interface through which the entity index
	// is maintained and queried.
	Indexer interface {
		Index(kind entity.Kind, entities ...*entity.Entity) error
		Remove(kind entity.Kind, ids ...uuid.UUID) error
		Candidates(kind entity.Kind) ([]match.Candidate, error)
	}

	// kindIndex holds the indexed candidates for a single
	// entity kind.
	kindIndex struct {
		byID map[uuid.UUID]*match.Candidate
	}

	// Index is an in-memory Indexer. Reads are snapshot based:
	// Candidates returns a copy of the indexed entities at the
	// time of the call, and later writes are not reflected in it.
	Index struct {
		*sync.RWMutex
		kinds  map[entity.Kind]*kindIndex
		seq    uint64
		closed bool
	}
)

func New() *Index {
	kinds := make(map[entity.Kind]*kindIndex, len(entity.AllKinds))
	for _, k := range entity.AllKinds {
		kinds[k] = &kindIndex{byID: make(map[uuid.UUID]*match.Candidate)}
	}

	return &Index{RWMutex: &sync.RWMutex{}, kinds: kinds}
}

// Index adds the entities provided to the index for the given kind. If an
// entity with the same ID is already indexed, its names are replaced
// but it retains its original position in the index.
func (index *Index) Index(kind entity.Kind, entities ...*entity.Entity) error {
	index.Lock()
	defer index.Unlock()

	ki, err := index.kindIndex(kind)
	if err != nil {
		return err
	}

	index.insert(ki, entities)
	log.Emit(logger.VERBOSE, "Indexed %d %s entities (total %d)\n", len(entities), kind, len(ki.byID))
	return nil
}

// Remove drops the entities with the given IDs from the index for the given kind.
// Unknown IDs are ignored.
func (index *Index) Remove(kind entity.Kind, ids ...uuid.UUID) error {
	index.Lock()
	defer index.Unlock()

	ki, err := index.kindIndex(kind)
	if err != nil {
		return err
	}

	for _, id := range ids {
		delete(ki.byID, id)
	}

	return nil
}

// Candidates returns a snapshot of every indexed entity of the given
// kind, in the order they were first indexed.
func (index *Index) Candidates(kind entity.Kind) ([]match.Candidate, error) {
	index.RLock()
	defer index.RUnlock()

	ki, err := index.kindIndex(kind)
	if err != nil {
		return nil, err
	}

	out := make([]match.Candidate, 0, len(ki.byID))
	for _, c := range ki.byID {
		out = append(out, match.Candidate{
			ID:    c.ID,
			Names: append([]string(nil), c.Names...),
			Seq:   c.Seq,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Reset clears the index for the given kind and indexes the entities
// provided in their place.
func (index *Index) Reset(kind entity.Kind, entities ...*entity.Entity) error {
	index.Lock()
	defer index.Unlock()

	ki, err := index.kindIndex(kind)
	if err != nil {
		return err
	}

	ki.byID = make(map[uuid.UUID]*match.Candidate, len(entities))
	index.insert(ki, entities)
	return nil
}

// Close marks the index as closed; all subsequent operations
// will return ErrClosed.
func (index *Index) Close() {
	index.Lock()
	defer index.Unlock()

	index.closed = true
}

func (index *Index) kindIndex(kind entity.Kind) (*kindIndex, error) {
	if index.closed {
		return nil, ErrClosed
	}

	ki, ok := index.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("no index for entity kind %s", kind)
	}

	return ki, nil
}

// insert must be called while holding the write lock.
func (index *Index) insert(ki *kindIndex, entities []*entity.Entity) {
	for _, e := range entities {
		if e == nil {
			continue
		}

		names := e.Names()
		if existing, ok := ki.byID[e.ID]; ok {
			existing.Names = names
			continue
		}

		index.seq++
		ki.byID[e.ID] = &match.Candidate{ID: e.ID, Names: names, Seq: index.seq}
	}
}
