package controller

import (
	"errors"
	"fmt"
	"time"

	"interaction-gateway/internal/model"
	"interaction-gateway/internal/schema"
	"interaction-gateway/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const invalidEventData = "invalid event data"

type EventController interface {
	CreateEvent(c *fiber.Ctx) error
	CreateBatch(c *fiber.Ctx) error
	Health(c *fiber.Ctx) error
}

// eventController exposes HTTP handlers for ingestion endpoints.
type eventController struct {
	eventService   service.EventService
	batchMaxEvents int
	version        string
	now            func() time.Time
}

// NewEventController builds an EventController. A batchMaxEvents of zero
// disables the batch size limit.
func NewEventController(svc service.EventService, batchMaxEvents int, version string) EventController {
	return &eventController{
		eventService:   svc,
		batchMaxEvents: batchMaxEvents,
		version:        version,
		now:            time.Now,
	}
}

// CreateEvent accepts a single event of the kind named in the path.
func (h *eventController) CreateEvent(c *fiber.Ctx) error {
	kind := utils.CopyString(c.Params("kind"))
	if _, ok := model.ParseKind(kind); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(model.ErrorResponse{
			Error:  invalidEventData,
			Detail: fmt.Sprintf("unknown event type: %q", kind),
			Fields: []model.FieldError{{Field: "event_type", Reason: schema.ReasonInvalidValue}},
		})
	}

	var raw map[string]any
	if err := c.BodyParser(&raw); err != nil || raw == nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json payload")
	}

	event, err := h.eventService.BuildEvent(kind, raw)
	if err != nil {
		return rejectEvent(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(h.eventService.ProcessEvent(c.UserContext(), event))
}

// CreateBatch accepts many events of mixed kinds in one request.
func (h *eventController) CreateBatch(c *fiber.Ctx) error {
	var req model.BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json payload")
	}
	if req.Events == nil {
		return fiber.NewError(fiber.StatusBadRequest, "events array is required")
	}
	if h.batchMaxEvents > 0 && len(req.Events) > h.batchMaxEvents {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch exceeds %d events", h.batchMaxEvents))
	}

	return c.Status(fiber.StatusAccepted).JSON(h.eventService.ProcessBatch(c.UserContext(), req.Events))
}

// Health reports liveness and the running version.
func (h *eventController) Health(c *fiber.Ctx) error {
	return c.JSON(model.Health{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Version:   h.version,
	})
}

func rejectEvent(c *fiber.Ctx, err error) error {
	resp := model.ErrorResponse{Error: invalidEventData, Detail: err.Error()}

	var verr *schema.ValidationError
	var kerr *schema.UnknownEventKindError
	switch {
	case errors.As(err, &verr):
		resp.Fields = verr.Fields
	case errors.As(err, &kerr):
		resp.Fields = []model.FieldError{{Field: "event_type", Reason: schema.ReasonInvalidValue}}
	default:
		return err
	}
	return c.Status(fiber.StatusBadRequest).JSON(resp)
}
