// Package event is Reel's in-process event bus. Every event carries the
// uuid.UUID of the scene, entity or ingest item it concerns.
package event

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/pkg/logger"
)

var log = logger.Get("EventBus")

type (
	Event         string
	Payload       any
	HandlerMethod func(Event, Payload)

	HandlerChannel chan HandlerEvent
	HandlerEvent   struct {
		Event   Event
		Payload Payload
	}

	EventDispatcher interface {
		Dispatch(Event, Payload)
	}

	EventHandler interface {
		RegisterAsyncHandlerFunction(Event, HandlerMethod)
		RegisterHandlerFunction(Event, HandlerMethod)
		RegisterHandlerChannel(HandlerChannel, ...Event)
	}

	EventCoordinator interface {
		EventDispatcher
		EventHandler
	}

	eventHandler struct {
		*sync.RWMutex
		fnHandlers   map[Event][]handlerMethod
		chanHandlers map[Event][]HandlerChannel
	}

	handlerMethod struct {
		handle HandlerMethod
		async  bool
	}
)

const (
	SceneImportedEvent Event = "scene:imported"
	EntityUpdateEvent  Event = "entity:update"
	EntityDeleteEvent  Event = "entity:delete"

	IngestUpdateEvent   Event = "ingest:update"
	IngestCompleteEvent Event = "ingest:complete"
)

func New() EventCoordinator {
	return &eventHandler{
		RWMutex:      &sync.RWMutex{},
		fnHandlers:   make(map[Event][]handlerMethod),
		chanHandlers: make(map[Event][]HandlerChannel),
	}
}

// RegisterHandlerChannel sends a HandlerEvent on the channel for each dispatch
// of any of the events given. Sends are blocking, so Dispatch stalls until
// the channel has room.
func (handler *eventHandler) RegisterHandlerChannel(handle HandlerChannel, events ...Event) {
	handler.Lock()
	defer handler.Unlock()

	for _, event := range events {
		handler.chanHandlers[event] = append(handler.chanHandlers[event], handle)
	}
}

// RegisterHandlerFunction calls handle on the dispatching goroutine.
func (handler *eventHandler) RegisterHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, false})
}

// RegisterAsyncHandlerFunction calls handle in a new goroutine per dispatch.
func (handler *eventHandler) RegisterAsyncHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, true})
}

func (handler *eventHandler) registerHandlerMethod(event Event, handle handlerMethod) {
	handler.Lock()
	defer handler.Unlock()

	handler.fnHandlers[event] = append(handler.fnHandlers[event], handle)
}

// Dispatch delivers the payload to every handler registered for the event.
// Payloads that are not a uuid.UUID are logged and dropped.
func (handler *eventHandler) Dispatch(event Event, payload Payload) {
	if err := validatePayload(event, payload); err != nil {
		log.Emit(logger.ERROR, "Dropping %s event: %v\n", event, err)
		return
	}

	handler.RLock()
	fnHandles := append([]handlerMethod(nil), handler.fnHandlers[event]...)
	chanHandles := append([]HandlerChannel(nil), handler.chanHandlers[event]...)
	handler.RUnlock()

	for _, handle := range fnHandles {
		if handle.async {
			go handle.handle(event, payload)
		} else {
			handle.handle(event, payload)
		}
	}

	ev := HandlerEvent{event, payload}
	for _, handle := range chanHandles {
		handle <- ev
	}
}

func validatePayload(event Event, payload Payload) error {
	switch event {
	case SceneImportedEvent, EntityUpdateEvent, EntityDeleteEvent, IngestUpdateEvent, IngestCompleteEvent:
		if _, ok := payload.(uuid.UUID); !ok {
			return fmt.Errorf("payload %T is not a uuid.UUID", payload)
		}

		return nil
	}

	return errors.New("unknown event")
}
