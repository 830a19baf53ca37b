package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assignment-engine/internal/api/dto"
	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/service"
)

// WorkUnitsHandler exposes work unit lifecycle and ownership endpoints.
type WorkUnitsHandler struct {
	assignments *service.AssignmentService
	ownership   *service.OwnershipService
	queries     *service.QueryService
}

// NewWorkUnitsHandler constructs handler.
func NewWorkUnitsHandler(assignments *service.AssignmentService, ownership *service.OwnershipService, queries *service.QueryService) *WorkUnitsHandler {
	return &WorkUnitsHandler{assignments: assignments, ownership: ownership, queries: queries}
}

// Start POST /work-units.
func (h *WorkUnitsHandler) Start(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return err
	}
	var req dto.StartWorkUnitRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	detail, err := h.assignments.StartWorkUnit(c.UserContext(), service.StartWorkUnitInput{
		TicketID:         req.TicketID,
		WorkflowID:       req.WorkflowID,
		InitialStepID:    req.InitialStepID,
		TargetResolution: req.TargetResolution,
	}, member)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": workUnitResponse(detail)})
}

// Get GET /work-units/:id.
func (h *WorkUnitsHandler) Get(c *fiber.Ctx) error {
	detail, err := h.queries.GetWorkUnit(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workUnitResponse(detail)})
}

// Advance POST /work-units/:id/advance.
func (h *WorkUnitsHandler) Advance(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return err
	}
	var req dto.AdvanceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	detail, err := h.assignments.Advance(c.UserContext(), c.Params("id"), req.StepID, member)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workUnitResponse(detail)})
}

// SetStatus POST /work-units/:id/status.
func (h *WorkUnitsHandler) SetStatus(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return err
	}
	var req dto.SetStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	unit, err := h.assignments.SetWorkUnitStatus(c.UserContext(), c.Params("id"), domain.WorkUnitStatus(req.Status), member)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workUnitResponse(&service.WorkUnitDetail{Unit: *unit})})
}

// Owner GET /work-units/:id/owner.
func (h *WorkUnitsHandler) Owner(c *fiber.Ctx) error {
	owner, err := h.ownership.GetOwner(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"owner": memberResponse(owner)}})
}

// OwnershipHistory GET /work-units/:id/ownership-history.
func (h *WorkUnitsHandler) OwnershipHistory(c *fiber.Ctx) error {
	changes, err := h.ownership.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.OwnershipChangeResponse, 0, len(changes))
	for _, change := range changes {
		items = append(items, ownershipChangeResponse(change))
	}
	return c.JSON(fiber.Map{"data": items})
}

// EscalateOwner POST /work-units/:id/owner/escalate.
func (h *WorkUnitsHandler) EscalateOwner(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return err
	}
	var req dto.OwnerEscalateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	change, err := h.ownership.EscalateOwner(c.UserContext(), c.Params("id"), member, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ownershipChangeResponse(*change)})
}

// TransferOwner POST /work-units/:id/owner/transfer.
func (h *WorkUnitsHandler) TransferOwner(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return err
	}
	var req dto.OwnerTransferRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	change, err := h.ownership.TransferOwner(c.UserContext(), c.Params("id"), req.TargetUserID, member, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ownershipChangeResponse(*change)})
}
