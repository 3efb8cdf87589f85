package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Reel/internal/api/entities"
	"github.com/hbomb79/Reel/internal/api/ingests"
	"github.com/hbomb79/Reel/internal/api/scenes"
	"github.com/hbomb79/Reel/internal/entity"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host" env:"API_HOST_ADDR" env-default:"0.0.0.0"`
		HostPort string `yaml:"port" env:"API_HOST_PORT" env-default:"8080"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// dataStore represents a union of all the controller store requirements
	dataStore interface {
		entities.Store
		scenes.Store
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole responsbility
	// is to create the routes Reel exposes.
	RestGateway struct {
		config            *RestConfig
		ec                *echo.Echo
		entityControllers map[entity.Kind]controller
		sceneController   controller
		ingestController  controller
	}

	requestValidator struct {
		validate *validator.Validate
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers. Each controller requires access
// to a data store or service, which are provided as arguments.
func NewRestGateway(
	config *RestConfig,
	importer scenes.Importer,
	ingestService ingests.Service,
	store dataStore,
) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true
	ec.Validator = &requestValidator{validate: validator.New()}

	gateway := &RestGateway{
		config:            config,
		ec:                ec,
		entityControllers: make(map[entity.Kind]controller, len(entity.AllKinds)),
		sceneController:   scenes.New(importer, store),
	}
	for _, kind := range entity.AllKinds {
		gateway.entityControllers[kind] = entities.New(kind, store)
	}

	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	for kind, ctrl := range gateway.entityControllers {
		ctrl.SetRoutes(ec.Group(fmt.Sprintf("/api/reel/v1/%ss", kind)))
	}

	gateway.sceneController.SetRoutes(ec.Group("/api/reel/v1/scenes"))

	if ingestService != nil {
		gateway.ingestController = ingests.New(ingestService)
		gateway.ingestController.SetRoutes(ec.Group("/api/reel/v1/ingests"))
	}

	return gateway
}

// Handler exposes the underlying router, primarily for use in tests.
func (gateway *RestGateway) Handler() http.Handler { return gateway.ec }

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%s", gateway.config.HostAddr, gateway.config.HostPort)
		log.Emit(logger.INFO, "REST gateway listening on %s\n", addr)
		if err := gateway.ec.Start(addr); err != nil && err != http.ErrServerClosed {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()
	ctxCancel(nil)

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}
