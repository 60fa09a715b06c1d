package controller

import (
	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/pkg/serverutils"
	"ai-secretary-funnel-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IFunnelController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	UpdateUserData(ctx *fiber.Ctx) error
	ConfirmProfile(ctx *fiber.Ctx) error
	AdvanceStep(ctx *fiber.Ctx) error
	RetreatStep(ctx *fiber.Ctx) error
	Persist(ctx *fiber.Ctx) error
	ResumeCandidate(ctx *fiber.Ctx) error
	Resume(ctx *fiber.Ctx) error
	StartNewTest(ctx *fiber.Ctx) error
	ResetDemo(ctx *fiber.Ctx) error
}

type funnelController struct {
	service service.IFunnelService
}

func NewFunnelController(service service.IFunnelService) IFunnelController {
	return &funnelController{service: service}
}

func (c *funnelController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/funnel/v1/sessions")
	h.Post("", c.Start)
	h.Get(":sid", c.Show)
	h.Patch(":sid/user-data", c.UpdateUserData)
	h.Post(":sid/confirm", c.ConfirmProfile)
	h.Post(":sid/advance", c.AdvanceStep)
	h.Post(":sid/retreat", c.RetreatStep)
	h.Post(":sid/persist", c.Persist)
	h.Get(":sid/resume-candidate", c.ResumeCandidate)
	h.Post(":sid/resume", c.Resume)
	h.Post(":sid/start-new", c.StartNewTest)
	h.Post(":sid/reset", c.ResetDemo)
}

func (c *funnelController) Start(ctx *fiber.Ctx) error {
	var req dto.StartSessionRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Start(ctx.Context(), &req, ctx.Get(fiber.HeaderUserAgent))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Session started", res))
}

func (c *funnelController) Show(ctx *fiber.Ctx) error {
	res, err := c.service.Show(ctx.Context(), ctx.Params("sid"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *funnelController) UpdateUserData(ctx *fiber.Ctx) error {
	var req dto.UpdateUserDataRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.UpdateUserData(ctx.Context(), ctx.Params("sid"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update user data", res))
}

func (c *funnelController) ConfirmProfile(ctx *fiber.Ctx) error {
	res, err := c.service.ConfirmProfile(ctx.Context(), ctx.Params("sid"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Profile confirmed", res))
}

func (c *funnelController) AdvanceStep(ctx *fiber.Ctx) error {
	res, err := c.service.AdvanceStep(ctx.Context(), ctx.Params("sid"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success advance step", res))
}

func (c *funnelController) RetreatStep(ctx *fiber.Ctx) error {
	res, err := c.service.RetreatStep(ctx.Context(), ctx.Params("sid"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success retreat step", res))
}

func (c *funnelController) Persist(ctx *fiber.Ctx) error {
	res, err := c.service.Persist(ctx.Context(), ctx.Params("sid"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success persist session", res))
}

func (c *funnelController) ResumeCandidate(ctx *fiber.Ctx) error {
	res, err := c.service.ResumeCandidate(ctx.Context(), ctx.Params("sid"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get resume candidate", res))
}

func (c *funnelController) Resume(ctx *fiber.Ctx) error {
	res, err := c.service.Resume(ctx.Context(), ctx.Params("sid"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Session resumed", res))
}

func (c *funnelController) StartNewTest(ctx *fiber.Ctx) error {
	res, err := c.service.StartNewTest(ctx.Context(), ctx.Params("sid"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("New test started", res))
}

func (c *funnelController) ResetDemo(ctx *fiber.Ctx) error {
	res, err := c.service.ResetDemo(ctx.Context(), ctx.Params("sid"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Demo reset", res))
}

// parseBody maps malformed JSON to a 400 instead of an internal error.
func parseBody(ctx *fiber.Ctx, out interface{}) error {
	if len(ctx.Body()) == 0 {
		return nil
	}
	if err := ctx.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}
