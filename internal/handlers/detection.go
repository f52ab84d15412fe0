package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/listinglab/clover/internal/repositories"
	"github.com/listinglab/clover/pkg/appcontext"
	"github.com/listinglab/clover/pkg/detection"
)

// DetectionHandler exposes the detection entry points
type DetectionHandler struct {
	detector     *detection.Detector
	detectionLog repositories.DetectionLogRepository
	logger       ectologger.Logger
}

// NewDetectionHandler creates a new detection handler
func NewDetectionHandler(detector *detection.Detector, detectionLog repositories.DetectionLogRepository, logger ectologger.Logger) *DetectionHandler {
	return &DetectionHandler{
		detector:     detector,
		detectionLog: detectionLog,
		logger:       logger,
	}
}

// RegisterRoutes registers detection routes
func (h *DetectionHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/records/:id/evaluate", h.EvaluateRecord)
	g.POST("/scans/full", h.TriggerFullScan)
	g.GET("/scans", h.ListScans)
}

// EvaluateRecord runs the incremental comparison for one listing and returns
// its ranked matches.
func (h *DetectionHandler) EvaluateRecord(c echo.Context) error {
	ctx := c.Request().Context()

	recordID, err := PathParam(c, "id")
	if err != nil {
		return err
	}

	resp, err := h.detector.EvaluateRecord(ctx, recordID, appcontext.GetActorID(ctx))
	if err != nil {
		return err
	}

	return SuccessResponse(c, resp)
}

// TriggerFullScan runs a full pairwise scan. Restricted to actors holding
// the full-scan grant; the scan runs synchronously within the request.
func (h *DetectionHandler) TriggerFullScan(c echo.Context) error {
	ctx := c.Request().Context()
	actorID := appcontext.GetActorID(ctx)

	h.logger.WithContext(ctx).WithFields(map[string]any{"actor_id": actorID}).Info("Full scan requested")

	summary, err := h.detector.RunFullScan(ctx, actorID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, summary)
}

// ListScans returns the detection run history, newest first.
func (h *DetectionHandler) ListScans(c echo.Context) error {
	ctx := c.Request().Context()
	limit, offset := Pagination(c)

	entries, err := h.detectionLog.List(ctx, limit, offset)
	if err != nil {
		return err
	}

	return SuccessResponse(c, entries)
}
