// Package importer is responsible for turning a file path in to a
// persisted Scene, optionally inferring the entities the scene relates
// to by matching the names of known entities against the path.
package importer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hbomb79/Reel/internal/entity"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/match"
	"github.com/hbomb79/Reel/internal/scene"
	"github.com/hbomb79/Reel/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var log = logger.Get("Importer")

type (
	FileValidator interface {
		Validate(path string) error
	}

	CandidateSource interface {
		Candidates(kind entity.Kind) ([]match.Candidate, error)
	}

	// DataStore must persist the scene AND its matched relationships
	// atomically; either both are visible afterwards, or neither are.
	DataStore interface {
		SaveImportedScene(ctx context.Context, scene *scene.Scene, matches scene.Matches) error
	}

	// Service is the scene importer. It is safe for concurrent use, and
	// imports of different paths share no mutable state.
	Service struct {
		config    Config
		validator FileValidator
		index     CandidateSource
		store     DataStore
		eventBus  event.EventDispatcher
	}

	// Result is the outcome of a single import performed
	// as part of ImportMany.
	Result struct {
		Path  string
		Scene *scene.Scene
		Err   error
	}
)

func New(config Config, validator FileValidator, index CandidateSource, store DataStore, eventBus event.EventDispatcher) *Service {
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}

	return &Service{
		config:    config,
		validator: validator,
		index:     index,
		store:     store,
		eventBus:  eventBus,
	}
}

// Import validates the file at the path provided and creates a new scene
// for it. If useMatchingConfig is true, then each entity kind which has
// path extraction enabled in the importers configuration will be matched
// against the path, and any matches are related to the new scene.
//
// If useMatchingConfig is false, no extraction is performed for ANY
// kind, regardless of configuration.
//
// The scene returned is fully populated with its relationships. On error, no
// scene is persisted: a *ValidationError indicates the path is not importable,
// a *MatchingError indicates the entity index could not be queried, and
// any other error is a persistence failure.
func (service *Service) Import(ctx context.Context, path string, useMatchingConfig bool) (*scene.Scene, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	log.Emit(logger.NEW, "Importing %s (matching=%v)\n", path, useMatchingConfig)
	if err := service.validator.Validate(path); err != nil {
		log.Emit(logger.WARNING, "Rejected import of %s: %v\n", path, err)
		return nil, &ValidationError{Path: path, Err: err}
	}

	matches, err := service.Extract(path, useMatchingConfig)
	if err != nil {
		log.Emit(logger.ERROR, "Import of %s failed during matching: %v\n", path, err)
		return nil, err
	}

	sc := scene.New(path)
	if err := service.store.SaveImportedScene(ctx, sc, matches); err != nil {
		return nil, fmt.Errorf("failed to save imported scene for %s: %w", path, err)
	}

	log.Emit(logger.SUCCESS, "Imported %s with %s\n", sc, matches)
	if service.eventBus != nil {
		service.eventBus.Dispatch(event.SceneImportedEvent, sc.ID)
	}

	return sc, nil
}

// ImportMany imports each of the paths provided, with at most Parallelism
// imports in flight at once. Every path is imported independently; the
// failure of one does not affect the others. Results are returned in the
// same order as the paths provided.
func (service *Service) ImportMany(ctx context.Context, paths []string, useMatchingConfig bool) []Result {
	results := make([]Result, len(paths))

	group := errgroup.Group{}
	group.SetLimit(service.config.Parallelism)
	for i, path := range paths {
		i, path := i, path
		group.Go(func() error {
			sc, err := service.Import(ctx, path, useMatchingConfig)
			results[i] = Result{Path: path, Scene: sc, Err: err}
			return nil
		})
	}

	_ = group.Wait()
	return results
}

// Extract computes the relationships for a scene at the given path. Matching
// for a given kind only runs when useMatchingConfig is true AND
// the configuration enables extraction for that kind.
func (service *Service) Extract(path string, useMatchingConfig bool) (scene.Matches, error) {
	matches := scene.Matches{}
	if !useMatchingConfig {
		return matches, nil
	}

	for _, kind := range entity.AllKinds {
		if !service.config.Matching.Enabled(kind) {
			continue
		}

		candidates, err := service.index.Candidates(kind)
		if err != nil {
			return scene.Matches{}, &MatchingError{Kind: kind, Err: err}
		}

		switch kind {
		case entity.Actor:
			matches.Actors = match.All(path, candidates)
		case entity.Label:
			matches.Labels = match.All(path, candidates)
		case entity.Movie:
			matches.Movies = match.All(path, candidates)
		case entity.Studio:
			if id, ok := match.Best(path, candidates); ok {
				matches.Studio = &id
			}
		}
	}

	log.Emit(logger.DEBUG, "Extracted %s from %s\n", matches, path)
	return matches, nil
}
