package controller

import (
	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/service"
	internalWS "ai-secretary-funnel-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IWebsocketController interface {
	RegisterRoutes(r fiber.Router)
	Upgrade(ctx *fiber.Ctx) error
}

type websocketController struct {
	funnel service.IFunnelService
	hub    *internalWS.Hub
}

func NewWebsocketController(funnel service.IFunnelService, hub *internalWS.Hub) IWebsocketController {
	return &websocketController{funnel: funnel, hub: hub}
}

func (c *websocketController) RegisterRoutes(r fiber.Router) {
	r.Get("/ws/funnel/:sid", c.Upgrade, websocket.New(c.serve))
}

// Upgrade only lets known visitors through; the tab gets the current state
// as its first frame.
func (c *websocketController) Upgrade(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	if _, err := c.funnel.Visitor(ctx.Params("sid")); err != nil {
		return err
	}
	return ctx.Next()
}

func (c *websocketController) serve(conn *websocket.Conn) {
	visitorID := conn.Params("sid")

	var initial []byte
	if mgr, err := c.funnel.Visitor(visitorID); err == nil {
		initial, _ = internalWS.Encode(service.PushState, dto.NewSessionResponse(visitorID, mgr.Snapshot()))
	}
	internalWS.ServeWs(c.hub, conn, visitorID, initial)
}
