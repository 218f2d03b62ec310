package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"torrent-notify/internal/reconciler"
	"torrent-notify/internal/repository"
	"torrent-notify/internal/service"
)

// PassRunner triggers an out-of-schedule reconciliation pass.
type PassRunner interface {
	RunPass(ctx context.Context) reconciler.PassResult
}

// Handler wires admin HTTP routes to the relay's components.
type Handler struct {
	waitList    repository.WaitListRepository
	submissions service.SubmissionService
	passes      PassRunner
	gatherer    prometheus.Gatherer
	jwtSecret   []byte
}

func NewHandler(waitList repository.WaitListRepository, submissions service.SubmissionService, passes PassRunner, gatherer prometheus.Gatherer, jwtSecret string) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		waitList:    waitList,
		submissions: submissions,
		passes:      passes,
		gatherer:    gatherer,
		jwtSecret:   []byte(strings.TrimSpace(jwtSecret)),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		protected := api.Group("", h.authMiddleware())
		protected.GET("/waitlist", h.listWaitList)
		protected.POST("/torrents", h.submitTorrent)
		protected.POST("/reconcile", h.runPass)
	}
}

// authMiddleware accepts HS256 bearer tokens signed with the configured secret.
// With no secret configured every request passes.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(h.jwtSecret) == 0 {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := jwt.Parse(strings.TrimSpace(raw), func(token *jwt.Token) (any, error) {
			return h.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if sub, err := token.Claims.GetSubject(); err == nil && sub != "" {
			c.Set("subject", sub)
		}
		c.Next()
	}
}

type WaitListEntryResponse struct {
	TorrentID   int64 `json:"torrent_id"`
	RecipientID int64 `json:"recipient_id"`
}

func (h *Handler) listWaitList(c *gin.Context) {
	entries, err := h.waitList.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]WaitListEntryResponse, 0, len(entries))
	for torrentID, recipientID := range entries {
		resp = append(resp, WaitListEntryResponse{TorrentID: torrentID, RecipientID: recipientID})
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].TorrentID < resp[j].TorrentID })
	c.JSON(http.StatusOK, resp)
}

type submitTorrentRequest struct {
	URL         string `json:"url" binding:"required"`
	RecipientID int64  `json:"recipient_id" binding:"required"`
}

type TorrentResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) submitTorrent(c *gin.Context) {
	var req submitTorrentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	torrent, err := h.submissions.Submit(c.Request.Context(), req.URL, req.RecipientID)
	if err != nil {
		status := http.StatusInternalServerError
		var subErr *service.SubmissionError
		if errors.As(err, &subErr) {
			switch subErr.Stage {
			case service.StageResolve:
				status = http.StatusBadRequest
			case service.StageAdd:
				status = http.StatusBadGateway
			}
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, TorrentResponse{ID: torrent.ID, Name: torrent.Name})
}

type PassResponse struct {
	ID         string  `json:"id"`
	Snapshot   int     `json:"snapshot"`
	Vanished   int     `json:"vanished"`
	Finished   int     `json:"finished"`
	Pending    int     `json:"pending"`
	Skipped    bool    `json:"skipped"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

func (h *Handler) runPass(c *gin.Context) {
	if h.passes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciler not configured"})
		return
	}

	result := h.passes.RunPass(c.Request.Context())
	resp := PassResponse{
		ID:         result.ID,
		Snapshot:   result.Snapshot,
		Vanished:   result.Vanished,
		Finished:   result.Finished,
		Pending:    result.Pending,
		Skipped:    result.Skipped,
		DurationMS: float64(result.Duration.Microseconds()) / 1000,
	}
	status := http.StatusOK
	if result.Err != nil {
		resp.Error = fmt.Sprint(result.Err)
		status = http.StatusBadGateway
	}
	c.JSON(status, resp)
}
