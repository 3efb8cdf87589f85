package entities

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/api/util"
	"github.com/hbomb79/Reel/internal/entity"
	"github.com/hbomb79/Reel/internal/scene"
	"github.com/labstack/echo/v4"
)

type (
	CreateRequest struct {
		Name    string   `json:"name" validate:"required"`
		Aliases []string `json:"aliases" validate:"dive,required"`
	}

	UpdateRequest struct {
		Name    *string   `json:"name" validate:"omitempty,min=1"`
		Aliases *[]string `json:"aliases" validate:"omitempty,dive,required"`
	}

	Dto struct {
		ID        uuid.UUID `json:"id"`
		Name      string    `json:"name"`
		Aliases   []string  `json:"aliases"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	SceneDto struct {
		ID     uuid.UUID `json:"id"`
		Path   string    `json:"path"`
		Studio uuid.UUID `json:"studio_id"`
	}

	Store interface {
		SaveEntity(ctx context.Context, kind entity.Kind, e *entity.Entity) error
		DeleteEntity(ctx context.Context, kind entity.Kind, id uuid.UUID) error
		GetEntity(kind entity.Kind, id uuid.UUID) (*entity.Entity, error)
		GetAllEntities(kind entity.Kind) ([]*entity.Entity, error)
		GetScenesForStudio(studioID uuid.UUID) ([]*scene.Scene, error)
	}

	// Controller serves the entities of a single kind. One controller
	// is constructed per kind, each mounted on it's own route group.
	Controller struct {
		kind  entity.Kind
		store Store
	}
)

func New(kind entity.Kind, store Store) *Controller {
	return &Controller{kind: kind, store: store}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/", controller.create)
	eg.GET("/", controller.list)
	eg.GET("/:id/", controller.get)
	eg.PATCH("/:id/", controller.update)
	eg.DELETE("/:id/", controller.delete)

	if controller.kind == entity.Studio {
		eg.GET("/:id/scenes/", controller.listStudioScenes)
	}
}

func (controller *Controller) create(ec echo.Context) error {
	var request CreateRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := ec.Validate(&request); err != nil {
		return err
	}

	model := entity.New(controller.kind, request.Name, request.Aliases...)
	if err := controller.store.SaveEntity(ec.Request().Context(), controller.kind, model); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to create %s: %v", controller.kind, err))
	}

	return ec.JSON(http.StatusCreated, NewDto(model))
}

func (controller *Controller) list(ec echo.Context) error {
	models, err := controller.store.GetAllEntities(controller.kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, util.ApplyConversion(models, NewDto))
}

func (controller *Controller) get(ec echo.Context) error {
	model, err := controller.lookup(ec)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, NewDto(model))
}

func (controller *Controller) update(ec echo.Context) error {
	model, err := controller.lookup(ec)
	if err != nil {
		return err
	}

	var request UpdateRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := ec.Validate(&request); err != nil {
		return err
	}

	model.Name = util.NotNilOrDefault(request.Name, model.Name)
	model.Aliases = util.NotNilOrDefault(request.Aliases, model.Aliases)
	if err := controller.store.SaveEntity(ec.Request().Context(), controller.kind, model); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to save %s: %v", controller.kind, err))
	}

	return ec.JSON(http.StatusOK, NewDto(model))
}

func (controller *Controller) delete(ec echo.Context) error {
	id, err := util.ParseIDParam(ec, controller.kind.String())
	if err != nil {
		return err
	}

	if err := controller.store.DeleteEntity(ec.Request().Context(), controller.kind, id); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return echo.ErrNotFound
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.NoContent(http.StatusNoContent)
}

func (controller *Controller) listStudioScenes(ec echo.Context) error {
	studio, err := controller.lookup(ec)
	if err != nil {
		return err
	}

	scenes, err := controller.store.GetScenesForStudio(studio.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, util.ApplyConversion(scenes, func(sc *scene.Scene) SceneDto {
		return SceneDto{ID: sc.ID, Path: sc.Path, Studio: studio.ID}
	}))
}

// lookup parses the 'id' path param and fetches the matching entity,
// returning an echo HTTP error if either step fails.
func (controller *Controller) lookup(ec echo.Context) (*entity.Entity, error) {
	id, err := util.ParseIDParam(ec, controller.kind.String())
	if err != nil {
		return nil, err
	}

	model, err := controller.store.GetEntity(controller.kind, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, echo.ErrNotFound
		}

		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return model, nil
}

func NewDto(model *entity.Entity) Dto {
	aliases := model.Aliases
	if aliases == nil {
		aliases = []string{}
	}

	return Dto{ID: model.ID, Name: model.Name, Aliases: aliases, CreatedAt: model.CreatedAt, UpdatedAt: model.UpdatedAt}
}
