package ingests

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/api/util"
	"github.com/hbomb79/Reel/internal/ingest"
	"github.com/labstack/echo/v4"
)

type (
	ResolutionTypeWrapper struct{ Value ingest.ResolutionType }
	ResolveTroubleRequest struct {
		Method *ResolutionTypeWrapper `json:"method" validate:"required"`
	}

	// Dto is the response used by endpoints that return
	// the items being ingested (e.g., list, get)
	Dto struct {
		ID      uuid.UUID   `json:"id"`
		Path    string      `json:"source_path"`
		State   string      `json:"state"`
		Trouble *TroubleDto `json:"trouble"`
	}

	TroubleDto struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}

	Service interface {
		GetAllIngests() []*ingest.IngestItem
		GetIngest(uuid.UUID) *ingest.IngestItem
		RemoveIngest(uuid.UUID) error
		DiscoverNewFiles()
		ResolveTrouble(itemID uuid.UUID, method ingest.ResolutionType) error
	}

	// Controller is the struct which is responsible for defining the
	// routes for this controller. Additionally, it holds the reference to
	// the service used to retrieve information about ingests from Reel
	Controller struct {
		service Service
	}
)

var stateNames = map[ingest.IngestItemState]string{
	ingest.IDLE:        "IDLE",
	ingest.IMPORT_HOLD: "IMPORT_HOLD",
	ingest.INGESTING:   "INGESTING",
	ingest.TROUBLED:    "TROUBLED",
	ingest.COMPLETE:    "COMPLETE",
}

var troubleNames = map[ingest.TroubleType]string{
	ingest.VALIDATION_FAILURE: "VALIDATION_FAILURE",
	ingest.MATCHING_FAILURE:   "MATCHING_FAILURE",
	ingest.GENERIC_FAILURE:    "UNKNOWN_FAILURE",
}

func New(serv Service) *Controller {
	return &Controller{service: serv}
}

// SetRoutes accepts the Echo group for the ingest endpoints
// and sets the routes on them.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.POST("/poll/", controller.performPoll)
	eg.GET("/:id/", controller.get)
	eg.DELETE("/:id/", controller.delete)
	eg.POST("/:id/trouble-resolution/", controller.postTroubleResolution)
}

func (controller *Controller) list(ec echo.Context) error {
	return ec.JSON(http.StatusOK, util.ApplyConversion(controller.service.GetAllIngests(), NewDto))
}

func (controller *Controller) get(ec echo.Context) error {
	id, err := util.ParseIDParam(ec, "Ingest")
	if err != nil {
		return err
	}

	item := controller.service.GetIngest(id)
	if item == nil {
		return echo.ErrNotFound
	}

	return ec.JSON(http.StatusOK, NewDto(item))
}

func (controller *Controller) delete(ec echo.Context) error {
	id, err := util.ParseIDParam(ec, "Ingest")
	if err != nil {
		return err
	}

	if err := controller.service.RemoveIngest(id); err != nil {
		if errors.Is(err, ingest.ErrIngestNotFound) {
			return echo.ErrNotFound
		}

		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	return ec.NoContent(http.StatusNoContent)
}

func (controller *Controller) postTroubleResolution(ec echo.Context) error {
	id, err := util.ParseIDParam(ec, "Ingest")
	if err != nil {
		return err
	}

	var request ResolveTroubleRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := ec.Validate(&request); err != nil {
		return err
	}

	if err := controller.service.ResolveTrouble(id, request.Method.Value); err != nil {
		if errors.Is(err, ingest.ErrIngestNotFound) {
			return echo.ErrNotFound
		}

		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) performPoll(ec echo.Context) error {
	controller.service.DiscoverNewFiles()

	return ec.NoContent(http.StatusOK)
}

func (wrapper *ResolutionTypeWrapper) UnmarshalJSON(data []byte) error {
	var strValue string
	if err := json.Unmarshal(data, &strValue); err != nil {
		return err
	}

	switch strValue {
	case "abort":
		wrapper.Value = ingest.ABORT
	case "retry":
		wrapper.Value = ingest.RETRY
	default:
		return fmt.Errorf("invalid enum value: %s for resolution method", strValue)
	}

	return nil
}

// NewDto creates a Dto using the IngestItem model.
func NewDto(item *ingest.IngestItem) Dto {
	var trbl *TroubleDto
	if item.Trouble != nil {
		trbl = &TroubleDto{Type: troubleNames[item.Trouble.Type()], Message: item.Trouble.Error()}
	}

	return Dto{ID: item.ID, Path: item.Path, State: stateNames[item.State], Trouble: trbl}
}
