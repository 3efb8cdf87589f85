package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/hbomb79/Reel/internal/api"
	"github.com/hbomb79/Reel/internal/api/ingests"
	"github.com/hbomb79/Reel/internal/database"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/importer"
	"github.com/hbomb79/Reel/internal/ingest"
	"github.com/hbomb79/Reel/internal/probe"
	"github.com/hbomb79/Reel/internal/search"
	"github.com/hbomb79/Reel/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	// reelImpl represents the top-level object for the server, and is responsible
	// for initialising the database connection, stores, services, et cetera...
	reelImpl struct {
		config   ReelConfig
		eventBus event.EventCoordinator
		db       database.Manager
		index    *search.Index
		data     *dataOrchestrator
		importer *importer.Service
	}
)

func New(config ReelConfig) *reelImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Reel services using config: %#v\n", config)
	return &reelImpl{
		config:   config,
		eventBus: event.New(),
		db:       database.New(),
		index:    search.New(),
	}
}

// Connect opens the database connection, constructs the stores and
// the importer, and populates the entity index from the database. It
// must be called before the importer is used.
func (reel *reelImpl) Connect() error {
	log.Emit(logger.NEW, "Connecting to database...\n")
	if err := reel.db.Connect(reel.config.Database); err != nil {
		return err
	}

	reel.data = newDataOrchestrator(reel.db, reel.index, reel.eventBus)
	if err := reel.data.RebuildIndexes(); err != nil {
		return err
	}

	reel.importer = importer.New(reel.config.Importer, probe.NewValidator(reel.config.Probe), reel.index, reel.data, reel.eventBus)
	return nil
}

// Importer returns the scene importer. Connect must have been called first.
func (reel *reelImpl) Importer() *importer.Service {
	return reel.importer
}

// Data returns the data orchestrator which owns every store. Connect
// must have been called first.
func (reel *reelImpl) Data() *dataOrchestrator {
	return reel.data
}

// Close releases the entity index and the database connection.
func (reel *reelImpl) Close() error {
	reel.index.Close()
	return reel.db.Close()
}

// Run will start all of Reel by bringing up all required services and connections.
//
// This function will not return until Reel is stopped.
// To stop Reel, the provided context must be cancelled. Errors from which Reel cannot recover
// will also cause Reel to stop.
func (reel *reelImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	if err := reel.Connect(); err != nil {
		return err
	}
	defer reel.Close()

	var ingestService ingests.Service
	wg := &sync.WaitGroup{}
	if len(reel.config.Ingest.IngestPaths) > 0 {
		serv, err := ingest.New(reel.config.Ingest, reel.importer, reel.data, reel.eventBus)
		if err != nil {
			return fmt.Errorf("failed to construct ingestion service: %w", err)
		}

		ingestService = serv
		reel.eventBus.RegisterAsyncHandlerFunction(event.SceneImportedEvent, serv.HandleSceneImported)
		reel.spawnAsyncService(ctx, wg, serv, "ingest-service", crashHandler)
	} else {
		log.Emit(logger.INFO, "No ingest paths configured, library ingestion is disabled\n")
	}

	restGateway := api.NewRestGateway(&reel.config.Api, reel.importer, ingestService, reel.data)
	reel.spawnAsyncService(ctx, wg, restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Reel services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService will run the provided service as it's own
// go-routine, ensuring that the Reel service waitgroup is updated correctly
func (reel *reelImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(label string, crash func(string, error)) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(serviceLabel, crashHandler)
}
