package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"

	"github.com/listinglab/clover/internal/repositories"
	"github.com/listinglab/clover/pkg/appcontext"
	"github.com/listinglab/clover/pkg/database"
	"github.com/listinglab/clover/pkg/events"
	"github.com/listinglab/clover/pkg/models"
)

// GroupHandler exposes the duplicate group review surface
type GroupHandler struct {
	groups         repositories.DuplicateGroupRepository
	falsePositives repositories.FalsePositiveRepository
	detectionLog   repositories.DetectionLogRepository
	emitter        events.Emitter
	logger         ectologger.Logger
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(
	groups repositories.DuplicateGroupRepository,
	falsePositives repositories.FalsePositiveRepository,
	detectionLog repositories.DetectionLogRepository,
	emitter events.Emitter,
	logger ectologger.Logger,
) *GroupHandler {
	return &GroupHandler{
		groups:         groups,
		falsePositives: falsePositives,
		detectionLog:   detectionLog,
		emitter:        emitter,
		logger:         logger,
	}
}

// RegisterRoutes registers group review routes
func (h *GroupHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/groups", h.ListGroups)
	g.GET("/groups/:id", h.GetGroup)
	g.POST("/groups/:id/resolve", h.ResolveGroup)
	g.GET("/false-positives", h.ListFalsePositives)
}

// ListGroups returns groups in the requested status (default pending).
func (h *GroupHandler) ListGroups(c echo.Context) error {
	ctx := c.Request().Context()
	limit, offset := Pagination(c)

	status := c.QueryParam("status")
	if status == "" {
		status = models.DuplicateGroupStatusPending
	}
	switch status {
	case models.DuplicateGroupStatusPending, models.DuplicateGroupStatusConfirmed, models.DuplicateGroupStatusDismissed:
	default:
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown status %q", status)
	}

	groups, err := h.groups.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return err
	}

	return SuccessResponse(c, groups)
}

// GetGroup returns one group with its members.
func (h *GroupHandler) GetGroup(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := PathParam(c, "id")
	if err != nil {
		return err
	}

	group, err := h.groups.Get(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, group)
}

// ResolveGroup confirms or dismisses a pending group. Dismissing records
// every member pair as a false positive so future scans never re-propose
// them.
func (h *GroupHandler) ResolveGroup(c echo.Context) error {
	ctx := c.Request().Context()
	actorID := appcontext.GetActorID(ctx)

	id, err := PathParam(c, "id")
	if err != nil {
		return err
	}

	var req models.ResolveGroupRequest
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	group, err := h.groups.Get(ctx, id)
	if err != nil {
		return err
	}
	if group.Status != models.DuplicateGroupStatusPending {
		return httperror.NewHTTPErrorf(http.StatusConflict, "group %s is already resolved", id)
	}

	if err := h.groups.UpdateStatus(ctx, id, req.Status, req.Notes, actorID); err != nil {
		return err
	}

	if req.Status == models.DuplicateGroupStatusDismissed {
		h.recordFalsePositives(c, group, actorID)
	}

	h.writeResolutionLog(c, group, req, actorID)

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"group_id": id,
		"status":   req.Status,
		"actor_id": actorID,
	}).Info("Duplicate group resolved")

	group.Status = req.Status
	group.Notes = req.Notes
	h.emitter.GroupResolved(ctx, &group.DuplicateGroup, actorID)

	return SuccessResponse(c, group)
}

// ListFalsePositives returns all reviewed-distinct pairs.
func (h *GroupHandler) ListFalsePositives(c echo.Context) error {
	ctx := c.Request().Context()

	pairs, err := h.falsePositives.ListAll(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, pairs)
}

// writeResolutionLog appends the audit entry for a resolution. The status
// update has already been committed, so a failed audit write is logged
// rather than surfaced to the reviewer.
func (h *GroupHandler) writeResolutionLog(c echo.Context, group *models.DuplicateGroupWithMembers, req models.ResolveGroupRequest, actorID string) {
	ctx := c.Request().Context()

	var actor *string
	if actorID != "" {
		actor = &actorID
	}

	memberIDs := make(pq.StringArray, 0, len(group.Members))
	for _, m := range group.Members {
		memberIDs = append(memberIDs, m.RecordID)
	}

	details := map[string]any{
		"group_id":         group.ID,
		"status":           req.Status,
		"confidence_score": group.ConfidenceScore,
	}
	if req.Notes != nil {
		details["notes"] = *req.Notes
	}

	entry := &models.DetectionLogEntry{
		ActionType:        models.ActionTypeResolveGroup,
		ActorID:           actor,
		AffectedRecordIDs: memberIDs,
		Details:           database.NewJSONB(details),
	}
	if err := h.detectionLog.Create(ctx, entry); err != nil {
		h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"group_id": group.ID,
		}).Error("Failed to write resolution log entry")
	}
}

// recordFalsePositives stores each member pair of a dismissed group.
// Failures are logged but do not fail the resolution; the group status is
// already updated and re-dismissal is idempotent.
func (h *GroupHandler) recordFalsePositives(c echo.Context, group *models.DuplicateGroupWithMembers, actorID string) {
	ctx := c.Request().Context()

	var createdBy *string
	if actorID != "" {
		createdBy = &actorID
	}

	for i := 0; i < len(group.Members); i++ {
		for j := i + 1; j < len(group.Members); j++ {
			pair := models.NewFalsePositivePair(group.Members[i].RecordID, group.Members[j].RecordID, createdBy)
			if err := h.falsePositives.Create(ctx, pair); err != nil {
				h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"group_id": group.ID,
				}).Error("Failed to record false positive pair")
			}
		}
	}
}
