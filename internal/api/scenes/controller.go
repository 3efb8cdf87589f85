package scenes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/api/entities"
	"github.com/hbomb79/Reel/internal/api/util"
	"github.com/hbomb79/Reel/internal/entity"
	"github.com/hbomb79/Reel/internal/importer"
	"github.com/hbomb79/Reel/internal/scene"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/labstack/echo/v4"
)

type (
	ImportRequest struct {
		Paths []string `json:"paths" validate:"required,min=1,dive,required"`
		Match bool     `json:"match"`
	}

	ImportResultDto struct {
		Path  string    `json:"path"`
		Scene *Dto      `json:"scene,omitempty"`
		Error *ErrorDto `json:"error,omitempty"`
	}

	ErrorDto struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}

	Dto struct {
		ID        uuid.UUID   `json:"id"`
		Path      string      `json:"path"`
		Studio    *uuid.UUID  `json:"studio_id"`
		Actors    []uuid.UUID `json:"actor_ids"`
		Labels    []uuid.UUID `json:"label_ids"`
		Movies    []uuid.UUID `json:"movie_ids"`
		CreatedAt time.Time   `json:"created_at"`
		UpdatedAt time.Time   `json:"updated_at"`
	}

	Importer interface {
		ImportMany(ctx context.Context, paths []string, useMatchingConfig bool) []importer.Result
	}

	Store interface {
		GetScene(id uuid.UUID) (*scene.Scene, error)
		GetAllScenes() ([]*scene.Scene, error)
		GetSceneRelated(kind entity.Kind, sceneID uuid.UUID) ([]*entity.Entity, error)
	}

	Controller struct {
		importer Importer
		store    Store
	}
)

var controllerLogger = logger.Get("ScenesController")

func New(importService Importer, store Store) *Controller {
	return &Controller{importer: importService, store: store}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.POST("/import/", controller.postImport)
	eg.GET("/:id/", controller.get)
	eg.GET("/:id/:relation/", controller.getRelated)
}

func (controller *Controller) list(ec echo.Context) error {
	scenes, err := controller.store.GetAllScenes()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, util.ApplyConversion(scenes, NewDto))
}

// postImport imports each of the paths in the request. The response
// status is 201 if every import succeeded, 207 if only some succeeded,
// and 422 if none did. The body always contains a result for every path.
func (controller *Controller) postImport(ec echo.Context) error {
	var request ImportRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := ec.Validate(&request); err != nil {
		return err
	}

	results := controller.importer.ImportMany(ec.Request().Context(), request.Paths, request.Match)
	succeeded := 0
	dtos := util.ApplyConversion(results, func(result importer.Result) ImportResultDto {
		if result.Err != nil {
			return ImportResultDto{Path: result.Path, Error: NewErrorDto(result.Err)}
		}

		succeeded++
		dto := NewDto(result.Scene)
		return ImportResultDto{Path: result.Path, Scene: &dto}
	})

	status := http.StatusCreated
	if succeeded == 0 {
		status = http.StatusUnprocessableEntity
	} else if succeeded < len(results) {
		status = http.StatusMultiStatus
	}

	controllerLogger.Emit(logger.INFO, "Import request for %d paths completed (%d succeeded)\n", len(results), succeeded)
	return ec.JSON(status, dtos)
}

func (controller *Controller) get(ec echo.Context) error {
	id, err := util.ParseIDParam(ec, "Scene")
	if err != nil {
		return err
	}

	model, err := controller.store.GetScene(id)
	if err != nil {
		if errors.Is(err, scene.ErrNotFound) {
			return echo.ErrNotFound
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, NewDto(model))
}

// getRelated returns the entities of the kind specified by the 'relation'
// path param (e.g. 'actors') which the scene references.
func (controller *Controller) getRelated(ec echo.Context) error {
	id, err := util.ParseIDParam(ec, "Scene")
	if err != nil {
		return err
	}

	kind, err := entity.ParseKind(ec.Param("relation"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	if _, err := controller.store.GetScene(id); err != nil {
		if errors.Is(err, scene.ErrNotFound) {
			return echo.ErrNotFound
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	related, err := controller.store.GetSceneRelated(kind, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, util.ApplyConversion(related, entities.NewDto))
}

func NewDto(model *scene.Scene) Dto {
	return Dto{
		ID:        model.ID,
		Path:      model.Path,
		Studio:    model.Studio,
		Actors:    nonNil(model.Actors),
		Labels:    nonNil(model.Labels),
		Movies:    nonNil(model.Movies),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func NewErrorDto(err error) *ErrorDto {
	var validationErr *importer.ValidationError
	var matchingErr *importer.MatchingError
	switch {
	case errors.As(err, &validationErr):
		return &ErrorDto{Type: "VALIDATION_FAILURE", Message: err.Error()}
	case errors.As(err, &matchingErr):
		return &ErrorDto{Type: "MATCHING_FAILURE", Message: err.Error()}
	}

	return &ErrorDto{Type: "UNKNOWN_FAILURE", Message: err.Error()}
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}

	return ids
}
