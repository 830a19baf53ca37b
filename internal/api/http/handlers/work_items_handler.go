package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assignment-engine/internal/api/dto"
	"github.com/spec-kit/assignment-engine/internal/service"
)

// WorkItemsHandler exposes work item commands and queries.
type WorkItemsHandler struct {
	assignments *service.AssignmentService
	escalations *service.EscalationService
	transfers   *service.TransferService
	queries     *service.QueryService
}

// NewWorkItemsHandler constructs handler.
func NewWorkItemsHandler(assignments *service.AssignmentService, escalations *service.EscalationService, transfers *service.TransferService, queries *service.QueryService) *WorkItemsHandler {
	return &WorkItemsHandler{assignments: assignments, escalations: escalations, transfers: transfers, queries: queries}
}

// ListMine GET /me/work-items.
func (h *WorkItemsHandler) ListMine(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return err
	}
	views, err := h.queries.ListOpenForUser(c.UserContext(), member.ID)
	if err != nil {
		return err
	}
	items := make([]dto.WorkItemResponse, 0, len(views))
	for _, view := range views {
		items = append(items, workItemResponse(view))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /work-items/:id. Viewing a new item opens it.
func (h *WorkItemsHandler) Get(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return err
	}
	view, err := h.queries.ViewWorkItem(c.UserContext(), c.Params("id"), member)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workItemResponse(*view)})
}

// Resolve POST /work-items/:id/resolve.
func (h *WorkItemsHandler) Resolve(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return err
	}
	var req dto.ResolveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.assignments.Resolve(c.UserContext(), c.Params("id"), member, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workItemResponse(*view)})
}

// Escalate POST /work-items/:id/escalate.
func (h *WorkItemsHandler) Escalate(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return err
	}
	var req dto.EscalateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.escalations.Escalate(c.UserContext(), c.Params("id"), req.Reason, member)
	if err != nil {
		return err
	}
	created := make([]dto.WorkItemResponse, 0, len(result.Created))
	for _, item := range result.Created {
		created = append(created, newItemResponse(item))
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"source":  workItemResponse(result.Source),
		"created": created,
	}})
}

// Transfer POST /work-items/:id/transfer.
func (h *WorkItemsHandler) Transfer(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return err
	}
	var req dto.TransferRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.transfers.Transfer(c.UserContext(), c.Params("id"), req.TargetUserID, member, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transferResponse(result)})
}

// Claim POST /work-items/:id/claim.
func (h *WorkItemsHandler) Claim(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return err
	}
	var req dto.ClaimRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.transfers.AdminTransferToSelf(c.UserContext(), c.Params("id"), member, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transferResponse(result)})
}

// Breach POST /work-items/:id/breach.
func (h *WorkItemsHandler) Breach(c *fiber.Ctx) error {
	view, err := h.assignments.MarkBreached(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workItemResponse(*view)})
}

func transferResponse(result *service.TransferResult) fiber.Map {
	return fiber.Map{
		"source":    workItemResponse(result.Source),
		"successor": newItemResponse(result.Successor),
	}
}
