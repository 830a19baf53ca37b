package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assignment-engine/internal/api/dto"
	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/service"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

// OperationsHandler exposes administrative rotation and notification endpoints.
type OperationsHandler struct {
	ownership     *service.OwnershipService
	notifications *service.NotificationService
}

// NewOperationsHandler constructs handler.
func NewOperationsHandler(ownership *service.OwnershipService, notifications *service.NotificationService) *OperationsHandler {
	return &OperationsHandler{ownership: ownership, notifications: notifications}
}

// NextOwner POST /rotations/:key/next.
func (h *OperationsHandler) NextOwner(c *fiber.Ctx) error {
	var req dto.NextOwnerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	member, err := h.ownership.Next(c.UserContext(), c.Params("key"), req.Exclude)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": memberResponse(member)})
}

// ListFailed GET /notifications/failed.
func (h *OperationsHandler) ListFailed(c *fiber.Ctx) error {
	var status *domain.NotificationStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		s := domain.NotificationStatus(raw)
		switch s {
		case domain.NotificationPending, domain.NotificationRetrying, domain.NotificationFailed, domain.NotificationSuccess:
		default:
			return apperrors.NewValidationError("unknown notification status", map[string]any{"status": raw})
		}
		status = &s
	}
	records, err := h.notifications.ListFailed(c.UserContext(), status, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	items := make([]dto.FailedNotificationResponse, 0, len(records))
	for _, record := range records {
		items = append(items, failedNotificationResponse(record))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Retry POST /notifications/failed/:id/retry.
func (h *OperationsHandler) Retry(c *fiber.Ctx) error {
	record, err := h.notifications.Retry(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": failedNotificationResponse(*record)})
}

// Reenable POST /notifications/failed/:id/reenable.
func (h *OperationsHandler) Reenable(c *fiber.Ctx) error {
	record, err := h.notifications.Reenable(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": failedNotificationResponse(*record)})
}

// RetryAll POST /notifications/failed/retry-all.
func (h *OperationsHandler) RetryAll(c *fiber.Ctx) error {
	summary, err := h.notifications.RetryAllPending(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}
