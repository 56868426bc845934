package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"support-chatbot-be/internal/dto"
	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/internal/pkg/serverutils"
	"support-chatbot-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type IChatbotController interface {
	RegisterRoutes(r fiber.Router, identity fiber.Handler)
	CreateSession(ctx *fiber.Ctx) error
	ListSessions(ctx *fiber.Ctx) error
	CloseSession(ctx *fiber.Ctx) error
	GetChatHistory(ctx *fiber.Ctx) error
	SendChat(ctx *fiber.Ctx) error
	ListTickets(ctx *fiber.Ctx) error
	GetLabels(ctx *fiber.Ctx) error
}

type chatbotController struct {
	chatbotService service.IChatbotService
	logger         logger.ILogger
}

func NewChatbotController(chatbotService service.IChatbotService, log logger.ILogger) IChatbotController {
	return &chatbotController{
		chatbotService: chatbotService,
		logger:         log,
	}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router, identity fiber.Handler) {
	h := r.Group("/support/v1")
	h.Get("labels", c.GetLabels)

	h.Use(identity)
	h.Post("sessions", c.CreateSession)
	h.Get("sessions", c.ListSessions)
	h.Delete("sessions/:id", c.CloseSession)
	h.Get("sessions/:id/history", c.GetChatHistory)
	h.Post("chat", c.SendChat)
	h.Get("tickets", c.ListTickets)
}

func (c *chatbotController) CreateSession(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx)

	res, err := c.chatbotService.CreateSession(ctx.UserContext(), userId)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatbotController) ListSessions(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx)

	res, err := c.chatbotService.ListSessions(ctx.UserContext(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list sessions", res))
}

// CloseSession ends a session. With ?revoke=true the session and its history
// are removed immediately instead of expiring.
func (c *chatbotController) CloseSession(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx)
	sessionId := ctx.Params("id")

	var err error
	if ctx.QueryBool("revoke") {
		err = c.chatbotService.RevokeSession(ctx.UserContext(), userId, sessionId)
	} else {
		err = c.chatbotService.CloseSession(ctx.UserContext(), userId, sessionId)
	}
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success close session", nil))
}

func (c *chatbotController) GetChatHistory(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx)

	res, err := c.chatbotService.GetChatHistory(ctx.UserContext(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

// SendChat answers with a server-sent event stream. Every "chunk" event holds
// the full reply so far; a final "done" event reports how the turn ended.
func (c *chatbotController) SendChat(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx)

	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// the stream outlives this handler, so it gets its own cancellation
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx.UserContext()))
	resp, err := c.chatbotService.SendChat(streamCtx, userId, &req)
	if err != nil {
		cancel()
		return err
	}

	requestId := uuid.NewString()
	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")
	ctx.Set(fiber.HeaderXRequestID, requestId)

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer resp.Close()

		for text := range resp.Increments() {
			if err := writeEvent(w, "chunk", dto.ChatChunkEvent{Chat: text}); err != nil {
				c.logger.Debug("HTTP", "Client went away mid-stream", map[string]interface{}{
					"request_id": requestId,
					"error":      err.Error(),
				})
				return
			}
		}

		done := dto.ChatDoneEvent{Path: resp.Path.String(), Complete: resp.Complete()}
		if resp.Ticket != nil {
			id := resp.Ticket.Id
			done.TicketId = &id
		}
		_ = writeEvent(w, "done", done)
	}))

	return nil
}

func (c *chatbotController) ListTickets(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx)
	limit, _ := strconv.Atoi(ctx.Query("limit", "20"))

	res, err := c.chatbotService.ListTickets(ctx.UserContext(), userId, limit)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list tickets", res))
}

func (c *chatbotController) GetLabels(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get labels", c.chatbotService.GetLabels()))
}

func writeEvent(w *bufio.Writer, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return w.Flush()
}
