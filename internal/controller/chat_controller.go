package controller

import (
	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/pkg/serverutils"
	"ai-secretary-funnel-be/internal/service"
	"ai-secretary-funnel-be/pkg/funnel/orchestrator"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Complete(ctx *fiber.Ctx) error
	Send(ctx *fiber.Ctx) error
	Messages(ctx *fiber.Ctx) error
	Reset(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("complete", c.Complete)
	h.Post("send", c.Send)
	h.Get("sessions/:sid/messages", c.Messages)
	h.Post("sessions/:sid/reset", c.Reset)
}

func (c *chatController) Complete(ctx *fiber.Ctx) error {
	var req dto.CompleteRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	return completionResponse(ctx, c.service.Complete(ctx.Context(), &req))
}

func (c *chatController) Send(ctx *fiber.Ctx) error {
	var req dto.SendRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Send(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return completionResponse(ctx, res)
}

// completionResponse answers 200 either way: a failed completion carries
// success false so the client can put the typed text back.
func completionResponse(ctx *fiber.Ctx, res orchestrator.Result) error {
	if !res.Success {
		return ctx.JSON(serverutils.BaseResponse[orchestrator.Result]{
			Success: false,
			Code:    fiber.StatusOK,
			Message: res.Error,
			Data:    res,
		})
	}
	return ctx.JSON(serverutils.SuccessResponse("Success complete message", res))
}

func (c *chatController) Messages(ctx *fiber.Ctx) error {
	res, err := c.service.Messages(ctx.Context(), ctx.Params("sid"), ctx.Query("thread_id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}

func (c *chatController) Reset(ctx *fiber.Ctx) error {
	if err := c.service.ResetConversation(ctx.Context(), ctx.Params("sid")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Conversation reset", nil))
}
