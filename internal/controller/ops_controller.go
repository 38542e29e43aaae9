package controller

import (
	"ai-saleschat-be/internal/dto"
	"ai-saleschat-be/internal/pkg/serverutils"
	"ai-saleschat-be/internal/service"
	"ai-saleschat-be/pkg/ai/router"

	"github.com/gofiber/fiber/v2"
)

type IOpsController interface {
	RegisterRoutes(r fiber.Router)
	FlushCache(ctx *fiber.Ctx) error
	ReloadRouting(ctx *fiber.Ctx) error
	InspectRateLimits(ctx *fiber.Ctx) error
	ResetRateLimit(ctx *fiber.Ctx) error
	GetEventStats(ctx *fiber.Ctx) error
	GetLogs(ctx *fiber.Ctx) error
}

type opsController struct {
	service service.IOpsService
}

func NewOpsController(service service.IOpsService) IOpsController {
	return &opsController{service: service}
}

func (c *opsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/ops/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("cache/flush", c.FlushCache)
	h.Post("routing/reload", c.ReloadRouting)
	h.Get("ratelimits", c.InspectRateLimits)
	h.Delete("ratelimits/:identifier", c.ResetRateLimit)
	h.Get("events", c.GetEventStats)
	h.Get("logs", c.GetLogs)
}

func (c *opsController) FlushCache(ctx *fiber.Ctx) error {
	var req dto.FlushCacheRequest
	if err := ctx.BodyParser(&req); err != nil && err != fiber.ErrUnprocessableEntity {
		return err
	}

	res, err := c.service.FlushCache(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success flush cache", res))
}

func (c *opsController) ReloadRouting(ctx *fiber.Ctx) error {
	var cfg router.Config
	if err := ctx.BodyParser(&cfg); err != nil {
		return err
	}

	res, err := c.service.ReloadRouting(ctx.Context(), cfg)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success reload routing", res))
}

func (c *opsController) InspectRateLimits(ctx *fiber.Ctx) error {
	res, err := c.service.InspectRateLimits(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success inspect rate limits", res))
}

func (c *opsController) ResetRateLimit(ctx *fiber.Ctx) error {
	identifier := ctx.Params("identifier")
	if identifier == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing identifier")
	}

	if err := c.service.ResetRateLimit(ctx.Context(), identifier); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success reset rate limit", nil))
}

func (c *opsController) GetEventStats(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get event stats", c.service.GetEventStats()))
}

func (c *opsController) GetLogs(ctx *fiber.Ctx) error {
	level := ctx.Query("level")
	limit := ctx.QueryInt("limit", 100)
	offset := ctx.QueryInt("offset", 0)

	res, err := c.service.GetLogs(level, limit, offset)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get logs", res))
}
