package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/webhook-chat/internal/chat"
	"github.com/wuwenbin0122/webhook-chat/internal/notify"
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var (
	errDraftRequired = errors.New("text is required")
	errSessionBusy   = errors.New("an exchange is pending")
)

type Handler struct {
	manager *chat.Manager
	hub     *notify.Hub
	logger  *zap.SugaredLogger
}

func NewHandler(manager *chat.Manager, hub *notify.Hub, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{manager: manager, hub: hub, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	widget := router.Group("/api/widget")

	widget.POST("/sessions", h.handleMount)

	session := widget.Group("/sessions/:id")
	session.GET("", h.handleState)
	session.DELETE("", h.handleUnmount)
	session.POST("/toggle", h.handleToggle)
	session.PUT("/draft", h.handleDraft)
	session.POST("/messages", h.handleSubmit)
	session.GET("/events", h.handleEvents)
}

type toggleRequest struct {
	Open *bool `json:"open"`
}

type draftRequest struct {
	Text *string `json:"text"`
}

type submitRequest struct {
	Message *string `json:"message"`
	Wait    bool    `json:"wait"`
}

type submitResponse struct {
	Accepted bool       `json:"accepted"`
	State    chat.State `json:"state"`
}

func (h *Handler) handleMount(c *gin.Context) {
	session := h.manager.Mount()
	h.logger.Infow("widget session mounted", "session_id", session.ID())
	c.JSON(http.StatusCreated, session.State())
}

func (h *Handler) handleState(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.State())
}

func (h *Handler) handleUnmount(c *gin.Context) {
	id := c.Param("id")
	if err := h.manager.Unmount(id); err != nil {
		writeError(c, http.StatusNotFound, "session not found", err)
		return
	}
	h.logger.Infow("widget session unmounted", "session_id", id)
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleToggle(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req toggleRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	if req.Open != nil {
		session.SetOpen(*req.Open)
	} else {
		session.Toggle()
	}

	c.JSON(http.StatusOK, session.State())
}

func (h *Handler) handleDraft(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}
	if req.Text == nil {
		writeError(c, http.StatusBadRequest, errDraftRequired.Error(), errDraftRequired)
		return
	}

	if !session.SetDraft(*req.Text) {
		writeError(c, http.StatusConflict, "draft is locked", errSessionBusy)
		return
	}

	c.JSON(http.StatusOK, session.State())
}

func (h *Handler) handleSubmit(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req submitRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	ctx := c.Request.Context()

	var (
		done     <-chan struct{}
		accepted bool
	)
	if req.Message != nil {
		done, accepted = session.Submit(ctx, *req.Message)
	} else {
		done, accepted = session.SubmitDraft(ctx)
	}

	if accepted && req.Wait {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	c.JSON(http.StatusOK, submitResponse{Accepted: accepted, State: session.State()})
}

func (h *Handler) handleEvents(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	conn, err := eventsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("widget websocket upgrade failed: %v", err)
		return
	}

	if err := h.hub.Serve(conn, session); err != nil {
		h.logger.Warnw("widget websocket stream ended", "session_id", session.ID(), "error", err)
	}
}

func (h *Handler) lookup(c *gin.Context) (*chat.Session, bool) {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusNotFound, "session not found", err)
		return nil, false
	}
	return session, true
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, out any) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeError(c *gin.Context, status int, message string, err error) {
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
