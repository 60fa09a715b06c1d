package controller

import (
	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/pkg/serverutils"
	"ai-secretary-funnel-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAnalyticsController interface {
	RegisterRoutes(r fiber.Router)
	Funnel(ctx *fiber.Ctx) error
	Attribution(ctx *fiber.Ctx) error
	Appointments(ctx *fiber.Ctx) error
	Logs(ctx *fiber.Ctx) error
	LogDetail(ctx *fiber.Ctx) error
}

type analyticsController struct {
	service service.IAnalyticsService
	logs    service.ILogService
}

func NewAnalyticsController(service service.IAnalyticsService, logs service.ILogService) IAnalyticsController {
	return &analyticsController{service: service, logs: logs}
}

func (c *analyticsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin")
	h.Use(serverutils.JwtMiddleware)
	h.Get("/analytics/v1/funnel", c.Funnel)
	h.Get("/analytics/v1/attribution", c.Attribution)
	h.Get("/analytics/v1/appointments", c.Appointments)
	h.Get("/logs/v1", c.Logs)
	h.Get("/logs/v1/:id", c.LogDetail)
}

func (c *analyticsController) Funnel(ctx *fiber.Ctx) error {
	res, err := c.service.Funnel(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get funnel analytics", res))
}

func (c *analyticsController) Attribution(ctx *fiber.Ctx) error {
	res, err := c.service.Attribution(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get attribution analytics", res))
}

func (c *analyticsController) Appointments(ctx *fiber.Ctx) error {
	res, err := c.service.Appointments(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get appointment analytics", res))
}

func (c *analyticsController) Logs(ctx *fiber.Ctx) error {
	var req dto.LogListRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.logs.List(&req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get logs", res))
}

func (c *analyticsController) LogDetail(ctx *fiber.Ctx) error {
	res, err := c.logs.Get(ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get log", res))
}
