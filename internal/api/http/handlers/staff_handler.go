package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/api/dto"
	"github.com/spec-kit/support-bot/internal/command"
	"github.com/spec-kit/support-bot/internal/service"
	apperrors "github.com/spec-kit/support-bot/pkg/util/errorutil"
)

// StaffHandler manages moderators on behalf of an administrator.
type StaffHandler struct {
	surface   *command.Surface
	staff     *service.StaffService
	lifecycle *service.LifecycleService
	logger    *zap.Logger
}

// NewStaffHandler constructs handler.
func NewStaffHandler(surface *command.Surface, staff *service.StaffService, lifecycle *service.LifecycleService, logger *zap.Logger) *StaffHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffHandler{surface: surface, staff: staff, lifecycle: lifecycle, logger: logger}
}

// ListModerators GET /api/moderators.
func (h *StaffHandler) ListModerators(c *fiber.Ctx) error {
	admin, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.surface.Authorize(admin, command.KindViewModerators); err != nil {
		return err
	}

	ctx := c.UserContext()
	mods, err := h.staff.ListModerators(ctx)
	if err != nil {
		return err
	}
	out := make([]dto.ModeratorResponse, 0, len(mods))
	for i := range mods {
		item := dto.ModeratorResponse{UserResponse: dto.NewUserResponse(&mods[i])}
		ticket, err := h.lifecycle.ActiveTicketForModerator(ctx, mods[i].ID)
		switch {
		case err == nil:
			id := ticket.ID
			item.CurrentTicketID = &id
		case !apperrors.IsNotFound(err):
			return err
		}
		out = append(out, item)
	}
	return c.JSON(fiber.Map{"data": out})
}

// Promote POST /api/moderators/:telegramID.
func (h *StaffHandler) Promote(c *fiber.Ctx) error {
	admin, err := principal(c)
	if err != nil {
		return err
	}
	telegramID, err := int64Param(c, "telegramID")
	if err != nil {
		return err
	}
	res, err := h.surface.Execute(c.UserContext(), admin, command.Promote{TelegramID: telegramID})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(res.User)})
}

// Demote DELETE /api/moderators/:userID.
func (h *StaffHandler) Demote(c *fiber.Ctx) error {
	admin, err := principal(c)
	if err != nil {
		return err
	}
	userID, err := int64Param(c, "userID")
	if err != nil {
		return err
	}
	res, err := h.surface.Execute(c.UserContext(), admin, command.Demote{UserID: userID})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DemoteResponse{
		User:     dto.NewUserResponse(res.User),
		Released: dto.NewSummaries(res.Released),
	}})
}

// Release POST /api/moderators/:userID/release.
func (h *StaffHandler) Release(c *fiber.Ctx) error {
	admin, err := principal(c)
	if err != nil {
		return err
	}
	userID, err := int64Param(c, "userID")
	if err != nil {
		return err
	}
	var req dto.ReleaseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if req.Reason == "" {
		req.Reason = "released by administrator"
	}

	res, err := h.surface.Execute(c.UserContext(), admin, command.ForceRelease{ModeratorID: userID, Reason: req.Reason})
	if err != nil {
		return err
	}
	h.logger.Info("tickets released over api",
		zap.Int64("admin_id", admin.ID),
		zap.Int64("moderator_id", userID),
		zap.Int("count", len(res.Released)))
	return c.JSON(fiber.Map{"data": dto.NewSummaries(res.Released)})
}
