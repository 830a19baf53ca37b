package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assignment-engine/internal/api/dto"
	"github.com/spec-kit/assignment-engine/internal/auth"
	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/service"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

// parseBody decodes an optional JSON body into req and validates it.
func parseBody(c *fiber.Ctx, req any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	return dto.Validate(req)
}

func currentMember(c *fiber.Ctx) (*domain.Member, error) {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return member, nil
}

func workItemResponse(view domain.WorkItemView) dto.WorkItemResponse {
	item := view.Item
	resp := dto.WorkItemResponse{
		ID:               item.ID,
		WorkUnitID:       item.WorkUnitID,
		Role:             item.Role,
		AssigneeID:       item.AssigneeID,
		AssignedOnStepID: item.AssignedOnStepID,
		Origin:           item.Origin,
		Status:           view.Status,
		Notes:            item.Notes,
		TransferredToID:  item.TransferredToID,
		TransferredByID:  item.TransferredByID,
		TargetResolution: item.TargetResolution,
		ActedOn:          item.ActedOn,
		CreatedAt:        item.CreatedAt,
	}
	for _, entry := range view.History {
		resp.History = append(resp.History, dto.LedgerEntryResponse{Status: entry.Status, CreatedAt: entry.CreatedAt})
	}
	return resp
}

func newItemResponse(item domain.WorkItem) dto.WorkItemResponse {
	return workItemResponse(domain.WorkItemView{Item: item, Status: domain.WorkItemNew})
}

func workUnitResponse(detail *service.WorkUnitDetail) dto.WorkUnitResponse {
	unit := detail.Unit
	resp := dto.WorkUnitResponse{
		ID:               unit.ID,
		TicketID:         unit.TicketID,
		WorkflowID:       unit.WorkflowID,
		WorkflowVersion:  unit.WorkflowVersion,
		CurrentStepID:    unit.CurrentStepID,
		Status:           unit.Status,
		OwnerID:          unit.OwnerID,
		TargetResolution: unit.TargetResolution,
		ResolvedAt:       unit.ResolvedAt,
		CreatedAt:        unit.CreatedAt,
		UpdatedAt:        unit.UpdatedAt,
	}
	for _, view := range detail.Items {
		resp.Items = append(resp.Items, workItemResponse(view))
	}
	return resp
}

func memberResponse(member *domain.Member) *dto.MemberResponse {
	if member == nil {
		return nil
	}
	return &dto.MemberResponse{ID: member.ID, Name: member.Name, Email: member.Email}
}

func ownershipChangeResponse(change domain.OwnershipChange) dto.OwnershipChangeResponse {
	return dto.OwnershipChangeResponse{
		ID:          change.ID,
		WorkUnitID:  change.WorkUnitID,
		OldOwnerID:  change.OldOwnerID,
		NewOwnerID:  change.NewOwnerID,
		ChangedByID: change.ChangedByID,
		Reason:      change.Reason,
		CreatedAt:   change.CreatedAt,
	}
}

func failedNotificationResponse(record domain.FailedNotification) dto.FailedNotificationResponse {
	return dto.FailedNotificationResponse{
		ID:           record.ID,
		Kind:         record.Kind,
		UserID:       record.UserID,
		WorkUnitID:   record.WorkUnitID,
		WorkItemID:   record.WorkItemID,
		Subject:      record.Subject,
		RoleName:     record.RoleName,
		Status:       record.Status,
		ErrorMessage: record.ErrorMessage,
		RetryCount:   record.RetryCount,
		MaxRetries:   record.MaxRetries,
		CreatedAt:    record.CreatedAt,
		LastRetryAt:  record.LastRetryAt,
		SucceededAt:  record.SucceededAt,
	}
}
