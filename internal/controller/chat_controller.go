package controller

import (
	"ai-saleschat-be/internal/dto"
	"ai-saleschat-be/internal/pkg/serverutils"
	"ai-saleschat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendChat(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	EndSession(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("", c.SendChat)
	h.Get("session/:id", c.GetSession)
	h.Get("session/:id/history", c.GetHistory)
	h.Delete("session/:id", c.EndSession)
}

func (c *chatController) SendChat(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendChat(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send chat", res))
}

func (c *chatController) GetSession(ctx *fiber.Ctx) error {
	tenantId, err := uuid.Parse(ctx.Query("tenant_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid tenant_id")
	}
	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.service.GetSession(ctx.Context(), tenantId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *chatController) GetHistory(ctx *fiber.Ctx) error {
	tenantId, err := uuid.Parse(ctx.Query("tenant_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid tenant_id")
	}
	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.service.GetChatHistory(ctx.Context(), tenantId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) EndSession(ctx *fiber.Ctx) error {
	tenantId, err := uuid.Parse(ctx.Query("tenant_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid tenant_id")
	}
	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	if err := c.service.EndSession(ctx.Context(), tenantId, &dto.EndSessionRequest{SessionId: sessionId}); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success end session", nil))
}
