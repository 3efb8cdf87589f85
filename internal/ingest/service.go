package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/scene"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/hbomb79/Reel/pkg/worker"
	"github.com/rjeczalik/notify"
)

var log = logger.Get("IngestServ")

type (
	sceneImporter interface {
		Import(ctx context.Context, path string, useMatchingConfig bool) (*scene.Scene, error)
	}

	dataStore interface {
		GetAllScenePaths() ([]string, error)
		GetScene(id uuid.UUID) (*scene.Scene, error)
	}

	// ingestService is responsible for managing the automatic detection
	// and import of files from the servers file system. The detected
	// files are:
	// - Checked against a blacklist to ensure they should be processed
	// - Held until their modtime is old enough
	// - Imported as scenes, with path matching enabled
	ingestService struct {
		*sync.Mutex
		ctx context.Context

		importer  sceneImporter
		dataStore dataStore
		eventBus  event.EventDispatcher

		config           Config
		blacklist        []*regexp.Regexp
		items            []*IngestItem
		importHoldTimers map[uuid.UUID]*time.Timer
		workerPool       *worker.WorkerPool
	}
)

// New creates a new IngestService, using the provided config for
// subsequent calls to 'Run'.
//
// Each of the configs 'IngestPaths' is validated to be an existing directory.
// If the directory is missing it will be created, if the path
// provided points to an existing FILE, an error is returned.
func New(config Config, importer sceneImporter, store dataStore, eventBus event.EventDispatcher) (*ingestService, error) {
	paths := make([]string, 0, len(config.IngestPaths))
	for _, path := range config.IngestPaths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("ingestion path '%s' could not be resolved: %w", path, err)
		}

		if info, err := os.Stat(abs); err == nil {
			if !info.IsDir() {
				return nil, fmt.Errorf("ingestion path '%s' is not a directory", abs)
			}
		} else if errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(abs, os.ModeDir|os.ModePerm); err != nil {
				return nil, fmt.Errorf("ingestion path '%s' could not be created: %w", abs, err)
			}
		} else {
			return nil, fmt.Errorf("ingestion path '%s' could not be accessed: %w", abs, err)
		}

		paths = append(paths, abs)
	}
	config.IngestPaths = paths

	blacklist := make([]*regexp.Regexp, len(config.Blacklist))
	for i, expr := range config.Blacklist {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("ingestion blacklist expression '%s' is invalid: %w", expr, err)
		}
		blacklist[i] = re
	}

	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}

	service := &ingestService{
		Mutex:            &sync.Mutex{},
		ctx:              context.Background(),
		importer:         importer,
		dataStore:        store,
		eventBus:         eventBus,
		config:           config,
		blacklist:        blacklist,
		items:            make([]*IngestItem, 0),
		importHoldTimers: make(map[uuid.UUID]*time.Timer),
		workerPool:       worker.NewWorkerPool(),
	}

	for i := 0; i < config.Parallelism; i++ {
		label := fmt.Sprintf("ingest-worker-%d", i)
		if err := service.workerPool.PushWorker(worker.NewWorker(label, service.PerformItemIngest)); err != nil {
			return nil, err
		}
	}

	return service, nil
}

// Run is the main entry point of this service. It's responsible
// for listening to the OS file system and responding to change events,
// as well as regularly polling the file system irrespective of the
// watcher (if the configuration used when creating the service
// has enabled this).
// To kill the service, the calling code should cancel the context
// provided.
func (service *ingestService) Run(ctx context.Context) error {
	service.Lock()
	service.ctx = ctx
	service.Unlock()

	fsNotifyChannel := make(chan notify.EventInfo, 16)
	for _, path := range service.config.IngestPaths {
		if err := notify.Watch(filepath.Join(path, "..."), fsNotifyChannel, notify.Create, notify.Write, notify.Rename); err != nil {
			notify.Stop(fsNotifyChannel)
			return fmt.Errorf("failed to watch ingestion path '%s': %w", path, err)
		}
	}
	defer notify.Stop(fsNotifyChannel)

	var forceSyncChannel <-chan time.Time
	if service.config.ForceSyncSeconds > 0 {
		ticker := time.NewTicker(time.Second * time.Duration(service.config.ForceSyncSeconds))
		defer ticker.Stop()
		forceSyncChannel = ticker.C
	}

	if err := service.workerPool.Start(); err != nil {
		return err
	}
	defer service.workerPool.Close()
	defer service.clearAllImportHoldTimers()

	service.DiscoverNewFiles()
	for {
		select {
		case ev := <-fsNotifyChannel:
			log.Emit(logger.VERBOSE, "File system event %s at %s\n", ev.Event(), ev.Path())
			service.DiscoverNewFiles()
		case <-forceSyncChannel:
			service.DiscoverNewFiles()
		case <-ctx.Done():
			return nil
		}
	}
}

// PerformItemIngest is the worker function for the IngestService, which is called
// by the services WorkerPool.
// This function will claim the first IDLE item it finds and attempt to import it.
// If the import fails then the error is set on the item as a Trouble and
// it's state set to TROUBLED. Successfully imported items are removed.
func (service *ingestService) PerformItemIngest(w worker.Worker) (bool, error) {
	item := service.claimIdleItem()
	if item == nil {
		return false, nil
	}

	service.Lock()
	ctx := service.ctx
	service.Unlock()

	sceneID, err := item.ingest(ctx, service.importer)

	service.Lock()
	defer service.Unlock()
	if err != nil {
		trbl := newTrouble(err)
		log.Emit(logger.WARNING, "Ingestion of item %s raised trouble %s: %v\n", item, trbl.Type(), trbl.error)
		item.Trouble = &trbl
		item.State = TROUBLED
		service.dispatch(event.IngestUpdateEvent, item.ID)
		return true, nil
	}

	item.State = COMPLETE
	service.removeItem(item.ID)
	service.dispatch(event.IngestCompleteEvent, sceneID)
	return true, nil
}

// DiscoverNewFiles will scan the host file system at the paths
// configured and check for items that need to be imported (as
// in no scene for these items already exist, and
// no current item in this service represents this path).
// Any paths found that match with any configured blacklists will
// be ignored.
//
// Note: This function will take ownership of the mutex, and releases it when returning
func (service *ingestService) DiscoverNewFiles() {
	service.Lock()
	defer service.Unlock()

	sourcePaths, err := service.dataStore.GetAllScenePaths()
	if err != nil {
		log.Emit(logger.ERROR, "Unable to discover new files, known scene paths could not be loaded: %v\n", err)
		return
	}

	sourcePathsLookup := make(map[string]bool, len(sourcePaths)+len(service.items))
	for _, path := range sourcePaths {
		sourcePathsLookup[path] = true
	}
	for _, item := range service.items {
		sourcePathsLookup[item.Path] = true
	}

	minModtimeAge := service.config.RequiredModTimeAgeDuration()
	dirty := false
	for _, root := range service.config.IngestPaths {
		newItems, err := recursivelyWalkFileSystem(root, sourcePathsLookup)
		if err != nil {
			log.Emit(logger.ERROR, "File system polling of %s failed: %v\n", root, err)
			continue
		}

		for itemPath, itemInfo := range newItems {
			if service.isBlacklisted(itemPath) {
				log.Emit(logger.VERBOSE, "Ignoring blacklisted file %s\n", itemPath)
				continue
			}

			sourcePathsLookup[itemPath] = true
			timeDiff := time.Since(itemInfo.ModTime())
			item := &IngestItem{ID: uuid.New(), Path: itemPath, State: IMPORT_HOLD}
			if timeDiff > minModtimeAge {
				item.State = IDLE
				dirty = true
			}

			service.items = append(service.items, item)
			if item.State == IMPORT_HOLD {
				service.scheduleImportHoldTimer(item.ID, minModtimeAge-timeDiff)
			}

			log.Emit(logger.NEW, "Discovered new item %s\n", item)
			service.dispatch(event.IngestUpdateEvent, item.ID)
		}
	}

	if dirty {
		service.wakeupWorkerPool()
	}
}

// HandleSceneImported is registered against SceneImportedEvent. When a scene
// is imported outside of this service (e.g. through the REST gateway) any
// pending item for the same path is dropped, as the file is no longer new.
// Items which are INGESTING are left alone, including the items whose
// import raised the event in the first place.
func (service *ingestService) HandleSceneImported(_ event.Event, payload event.Payload) {
	sceneID, ok := payload.(uuid.UUID)
	if !ok {
		return
	}

	sc, err := service.dataStore.GetScene(sceneID)
	if err != nil {
		log.Emit(logger.WARNING, "Unable to load imported scene %s: %v\n", sceneID, err)
		return
	}

	service.Lock()
	defer service.Unlock()

	var stale *IngestItem
	for _, item := range service.items {
		if item.Path == sc.Path && item.State != INGESTING {
			stale = item
			break
		}
	}
	if stale == nil {
		return
	}

	log.Emit(logger.INFO, "Item %s was imported as %s elsewhere, removing item\n", stale, sc)
	service.clearImportHoldTimer(stale.ID)
	service.removeItem(stale.ID)
	service.dispatch(event.IngestUpdateEvent, stale.ID)
}

// ResolveTrouble resolves the trouble on the item with the ID provided. A
// RETRY resolution returns the item to IDLE so it will be imported again, and
// an ABORT resolution removes the item from the service entirely.
func (service *ingestService) ResolveTrouble(itemID uuid.UUID, method ResolutionType) error {
	service.Lock()
	defer service.Unlock()

	item := service.getItem(itemID)
	if item == nil {
		return ErrIngestNotFound
	}
	if item.State != TROUBLED || item.Trouble == nil {
		return ErrNoTrouble
	}

	log.Emit(logger.INFO, "Resolving trouble on item %s using %s\n", item, method)
	switch method {
	case RETRY:
		item.Trouble = nil
		item.State = IDLE
		service.dispatch(event.IngestUpdateEvent, item.ID)
		service.wakeupWorkerPool()
	case ABORT:
		service.removeItem(itemID)
		service.dispatch(event.IngestUpdateEvent, itemID)
	default:
		return fmt.Errorf("resolution method %s is not supported", method)
	}

	return nil
}

// RemoveIngest looks for an item with the ID provided in the services
// state, and removes it if it's found.
// This method *fails* if the item is currently 'INGESTING' as interrupting
// the import is not possible.
func (service *ingestService) RemoveIngest(itemID uuid.UUID) error {
	service.Lock()
	defer service.Unlock()

	item := service.getItem(itemID)
	if item == nil {
		return ErrIngestNotFound
	}
	if item.State == INGESTING {
		return ErrIngestBusy
	}

	service.clearImportHoldTimer(itemID)
	service.removeItem(itemID)
	return nil
}

// GetIngest returns a copy of the item with the ID provided, or
// nil if no such item exists.
func (service *ingestService) GetIngest(itemID uuid.UUID) *IngestItem {
	service.Lock()
	defer service.Unlock()

	if item := service.getItem(itemID); item != nil {
		cpy := *item
		return &cpy
	}

	return nil
}

// GetAllIngests returns a copy of all the items currently
// being processed by this service.
func (service *ingestService) GetAllIngests() []*IngestItem {
	service.Lock()
	defer service.Unlock()

	out := make([]*IngestItem, len(service.items))
	for i, item := range service.items {
		cpy := *item
		out[i] = &cpy
	}

	return out
}

// evaluateItemHold accepts the ID of an item that is on IMPORT_HOLD,
// and checks it's modtime to see if the item can be moved on to
// the 'IDLE' state.
// If the item with the ID provided no longer exists, the method is a NO-OP.
// If the item exists, but it's source file no longer exists, the item is removed
// from the services state.
// If the item exists and it's source still does not meet modtime requirements, then
// then a new timer will be scheduled to re-evaluate the item hold.
//
// Note: this function takes ownership of the mutex, and releases it when returning
func (service *ingestService) evaluateItemHold(id uuid.UUID) {
	service.Lock()
	defer service.Unlock()

	delete(service.importHoldTimers, id)
	item := service.getItem(id)
	if item == nil || item.State != IMPORT_HOLD {
		return
	}

	timeDiff, err := item.modtimeDiff()
	if err != nil {
		log.Emit(logger.WARNING, "Source of item %s has gone away, removing item\n", item)
		service.removeItem(id)
		return
	}

	thresholdModTime := service.config.RequiredModTimeAgeDuration()
	if timeDiff < thresholdModTime {
		service.scheduleImportHoldTimer(id, thresholdModTime-timeDiff)
		return
	}

	item.State = IDLE
	service.dispatch(event.IngestUpdateEvent, id)
	service.wakeupWorkerPool()
}

// scheduleImportHoldTimer will call evaluateItemHold for the item provided
// after the delay duration specified has elapsed. Any existing import hold timer
// for the item specified will be *cancelled* before the new timer is created.
func (service *ingestService) scheduleImportHoldTimer(id uuid.UUID, delay time.Duration) {
	service.clearImportHoldTimer(id)
	service.importHoldTimers[id] = time.AfterFunc(delay, func() {
		service.evaluateItemHold(id)
	})
}

func (service *ingestService) clearImportHoldTimer(id uuid.UUID) {
	if timer, ok := service.importHoldTimers[id]; ok {
		timer.Stop()
		delete(service.importHoldTimers, id)
	}
}

func (service *ingestService) clearAllImportHoldTimers() {
	service.Lock()
	defer service.Unlock()

	for key, timer := range service.importHoldTimers {
		timer.Stop()
		delete(service.importHoldTimers, key)
	}
}

// claimIdleItem will try and find an IDLE item in the ingest service,
// and set it's state to 'INGESTING' to prevent another
// worker from claiming it once the mutex lock is released.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (service *ingestService) claimIdleItem() *IngestItem {
	service.Lock()
	defer service.Unlock()

	for _, item := range service.items {
		if item.State == IDLE {
			item.State = INGESTING
			return item
		}
	}

	return nil
}

func (service *ingestService) isBlacklisted(path string) bool {
	name := filepath.Base(path)
	for _, re := range service.blacklist {
		if re.MatchString(name) {
			return true
		}
	}

	return false
}

// getItem requires the caller to hold the mutex.
func (service *ingestService) getItem(id uuid.UUID) *IngestItem {
	for _, item := range service.items {
		if item.ID == id {
			return item
		}
	}

	return nil
}

// removeItem requires the caller to hold the mutex.
func (service *ingestService) removeItem(id uuid.UUID) {
	for k, v := range service.items {
		if v.ID == id {
			service.items = append(service.items[:k], service.items[k+1:]...)
			return
		}
	}
}

func (service *ingestService) wakeupWorkerPool() {
	if err := service.workerPool.WakeupWorkers(); err != nil {
		log.Emit(logger.DEBUG, "Unable to wake ingest workers: %v\n", err)
	}
}

func (service *ingestService) dispatch(ev event.Event, id uuid.UUID) {
	if service.eventBus != nil {
		service.eventBus.Dispatch(ev, id)
	}
}

// recursivelyWalkFileSystem will walk the file system, starting at the directory provided,
// and construct a map of all the files inside (including any inside of nested directories).
// Files whose paths are included in the 'known' map will NOT be included in the result.
// The key of the returned map is the path, and the value contains the FileInfo
func recursivelyWalkFileSystem(rootDirPath string, known map[string]bool) (map[string]fs.FileInfo, error) {
	foundItems := make(map[string]fs.FileInfo)
	err := filepath.WalkDir(rootDirPath, func(path string, dir fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if dir.Type().IsRegular() {
			fileInfo, err := dir.Info()
			if err != nil {
				return err
			}

			if _, ok := known[path]; !ok {
				foundItems[path] = fileInfo
			}
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk file system: %w", err)
	}

	return foundItems, nil
}
