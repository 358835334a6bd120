package chat

import (
	"context"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jo-hoe/imagebot/internal/dispatcher"
	"github.com/jo-hoe/imagebot/internal/transform"
)

const (
	SecretHeader = "X-Bot-Api-Secret-Token"
	photoField   = "photo"
)

// Bot is the part of the dispatcher the transport talks to.
type Bot interface {
	HandleImage(ctx context.Context, key string, raw []byte) dispatcher.Reply
	HandleCommand(ctx context.Context, key string, cmd transform.Command) dispatcher.Reply
	Start() dispatcher.Reply
	Help() dispatcher.Reply
}

type messageRequest struct {
	Text string `json:"text" validate:"required"`
}

// Service exposes a Bot as webhook-style HTTP endpoints, one session per chat.
type Service struct {
	bot      Bot
	secret   string
	gatherer prometheus.Gatherer
}

// NewService creates the transport. An empty secret disables the header
// check; a nil gatherer disables /metrics.
func NewService(bot Bot, secret string, gatherer prometheus.Gatherer) *Service {
	return &Service{
		bot:      bot,
		secret:   secret,
		gatherer: gatherer,
	}
}

func (s *Service) SetRoutes(e *echo.Echo) {
	e.GET(probePath, func(c echo.Context) error {
		return c.String(http.StatusOK, "imagebot is running")
	})
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	chats := e.Group("/chats/:chat", s.requireSecret)
	chats.POST("/photo", s.photoHandler)
	chats.POST("/messages", s.messageHandler)
}

func (s *Service) requireSecret(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.secret == "" {
			return next(c)
		}
		got := c.Request().Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			slog.Warn("ChatService: rejected request with invalid secret",
				"status", http.StatusUnauthorized, "chat", c.Param("chat"))
			return c.String(http.StatusUnauthorized, "invalid secret token")
		}
		return next(c)
	}
}

func (s *Service) photoHandler(c echo.Context) error {
	chat := c.Param("chat")
	file, err := c.FormFile(photoField)
	if err != nil {
		slog.Warn("ChatService: missing photo upload",
			"status", http.StatusBadRequest, "chat", chat, "error", err)
		return c.String(http.StatusBadRequest, "Missing photo")
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("ChatService: failed to open uploaded photo",
			"status", http.StatusInternalServerError, "chat", chat, "error", err, "filename", file.Filename)
		return c.String(http.StatusInternalServerError, "Failed to open uploaded photo")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("ChatService: failed to close uploaded photo reader", "error", cerr, "filename", file.Filename)
		}
	}()

	raw, err := io.ReadAll(src)
	if err != nil {
		slog.Error("ChatService: failed to read uploaded photo",
			"status", http.StatusInternalServerError, "chat", chat, "error", err, "filename", file.Filename)
		return c.String(http.StatusInternalServerError, "Failed to read uploaded photo")
	}

	return s.respond(c, s.bot.HandleImage(c.Request().Context(), chat, raw))
}

func (s *Service) messageHandler(c echo.Context) error {
	chat := c.Param("chat")
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "received malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	token := strings.TrimSpace(req.Text)
	// only the first word is the command, e.g. "/blur please"
	if i := strings.IndexAny(token, " \t\n"); i >= 0 {
		token = token[:i]
	}

	switch normalizeToken(token) {
	case "start":
		return s.respond(c, s.bot.Start())
	case "help":
		return s.respond(c, s.bot.Help())
	}

	cmd, err := transform.ParseCommand(token)
	if err != nil {
		slog.Info("ChatService: unknown command", "chat", chat, "token", token)
		return c.String(http.StatusBadRequest, dispatcher.UnknownCommandText)
	}

	slog.Debug("ChatService: command received", "chat", chat, "command", cmd.String())
	return s.respond(c, s.bot.HandleCommand(c.Request().Context(), chat, cmd))
}

func normalizeToken(token string) string {
	t := strings.ToLower(strings.TrimPrefix(token, "/"))
	if i := strings.IndexByte(t, '@'); i >= 0 {
		t = t[:i]
	}
	return t
}

func (s *Service) respond(c echo.Context, reply dispatcher.Reply) error {
	if reply.IsPhoto() {
		return c.Blob(http.StatusOK, reply.ContentType, reply.Photo)
	}
	return c.String(statusFor(reply.Kind), reply.Text)
}

func statusFor(kind dispatcher.Kind) int {
	switch kind {
	case "":
		return http.StatusOK
	case dispatcher.KindDecode:
		return http.StatusBadRequest
	case dispatcher.KindPrecondition:
		return http.StatusConflict
	case dispatcher.KindTransform:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
