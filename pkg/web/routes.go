package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/enforcement"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/feedback"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/notify"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FeedbackService is the submission flow
type FeedbackService interface {
	Submit(ctx context.Context, in feedback.SubmitInput) (feedback.SubmitResult, error)
	Get(ctx context.Context, id string) (*models.Feedback, error)
	List(ctx context.Context, status models.FeedbackStatus, page, limit int) (models.FeedbackPage, error)
	Delete(ctx context.Context, id string) error
}

// Enforcer exposes ban state and manual unbans
type Enforcer interface {
	Status(ctx context.Context, userID string) (enforcement.Status, error)
	Unban(ctx context.Context, userID, adminID string) error
}

// Notifications lists and acknowledges user notifications
type Notifications interface {
	Dispatch(ctx context.Context, userID, templateKey string, vars map[string]string, sendEmail bool) bool
	List(ctx context.Context, userID string, page, limit int, unreadOnly bool) (models.NotificationPage, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
}

// UserProvisioner creates users on first authenticated request
type UserProvisioner interface {
	EnsureUser(ctx context.Context, id, email string) (*models.User, bool, error)
}

// StatusReporter is the database status for /api/status
type StatusReporter interface {
	GetStatus(ctx context.Context) (string, bool)
}

// BotStatus is the optional admin bot
type BotStatus interface {
	IsReady() bool
}

// API holds the handlers' dependencies
type API struct {
	Feedback      FeedbackService
	Enforcement   Enforcer
	Notifications Notifications
	Users         UserProvisioner
	Database      StatusReporter
	Bot           BotStatus
	Hub           *AlertHub
	Providers     func() []models.Provider
	JWTSecret     string
	StartedAt     time.Time
}

// SetupAPIRoutes registers every route on s
func SetupAPIRoutes(s *Server, a *API) {
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.Group("/api")
	{
		api.GET("/health", a.healthHandler)
		api.GET("/status", a.statusHandler)
		api.POST("/feedback", authMiddleware(a.JWTSecret, false), a.submitHandler)
	}

	user := api.Group("", authMiddleware(a.JWTSecret, true))
	{
		user.GET("/notifications", a.listNotificationsHandler)
		user.POST("/notifications/read", a.markReadHandler)
		user.GET("/users/:id/status", a.userStatusHandler)
	}

	admin := api.Group("/admin", authMiddleware(a.JWTSecret, true), requireAdmin())
	{
		admin.GET("/feedback", a.listFeedbackHandler)
		admin.GET("/feedback/:id", a.getFeedbackHandler)
		admin.DELETE("/feedback/:id", a.deleteFeedbackHandler)
		admin.POST("/users/:id/unban", a.unbanHandler)
		if a.Hub != nil {
			admin.GET("/alerts/ws", a.Hub.Handle)
		}
	}
}

func (a *API) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "PancyFeedback Go is running",
	})
}

func (a *API) statusHandler(c *gin.Context) {
	dbStatus, dbOnline := "💾 | Memoria", false
	if a.Database != nil {
		dbStatus, dbOnline = a.Database.GetStatus(c.Request.Context())
	}

	botOnline := false
	if a.Bot != nil {
		botOnline = a.Bot.IsReady()
	}

	providers := []models.Provider{}
	if a.Providers != nil {
		providers = append(providers, a.Providers()...)
	}

	dashboards := 0
	if a.Hub != nil {
		dashboards = a.Hub.Clients()
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(a.StartedAt).Round(time.Second).String(),
		"database": gin.H{
			"status":   dbStatus,
			"isOnline": dbOnline,
		},
		"bot": gin.H{
			"isOnline": botOnline,
		},
		"moderation": gin.H{
			"classifiers": providers,
		},
		"alertDashboards": dashboards,
	})
}

type submitRequest struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (a *API) submitHandler(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Cuerpo JSON inválido.")
		return
	}

	ctx := c.Request.Context()
	userID := callerID(c)
	if userID != "" && a.Users != nil {
		_, created, err := a.Users.EnsureUser(ctx, userID, c.GetString(ctxEmail))
		if err != nil {
			logger.Warn(fmt.Sprintf("No se pudo preparar el usuario %s: %v", userID, err), "WebServer")
		} else if created && a.Notifications != nil {
			a.Notifications.Dispatch(ctx, userID, notify.Welcome, nil, true)
		}
	}

	res, err := a.Feedback.Submit(ctx, feedback.SubmitInput{
		Content:  req.Content,
		Category: req.Category,
		UserID:   userID,
	})
	if err != nil {
		var banned *feedback.BannedError
		switch {
		case errors.Is(err, errors.ErrValidation):
			badRequest(c, "El contenido no puede estar vacío.")
		case errors.As(err, &banned):
			c.JSON(http.StatusForbidden, gin.H{
				"error":    "Banned",
				"message":  "Tu cuenta está suspendida temporalmente.",
				"banUntil": banned.BanUntil,
			})
		default:
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     res.Feedback.ID,
		"status": res.Feedback.Status,
		"moderation": gin.H{
			"flagged": res.Feedback.Moderation.Flagged,
			"reason":  res.Feedback.Moderation.Reason,
		},
		"enforcement": res.Decision,
	})
}

func (a *API) listNotificationsHandler(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	unread := c.Query("unread") == "true"

	res, err := a.Notifications.List(c.Request.Context(), callerID(c), page, limit, unread)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

func (a *API) markReadHandler(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Cuerpo JSON inválido.")
		return
	}

	n, err := a.Notifications.MarkRead(c.Request.Context(), callerID(c), req.IDs)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (a *API) userStatusHandler(c *gin.Context) {
	id := c.Param("id")
	if id != callerID(c) && c.MustGet(ctxRole) != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "Forbidden",
			"message": "Solo puedes consultar tu propio estado.",
		})
		return
	}

	status, err := a.Enforcement.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			notFound(c, "Usuario no encontrado.")
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (a *API) listFeedbackHandler(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	status := models.FeedbackStatus(c.Query("status"))
	if status != "" && status != models.FeedbackAccepted && status != models.FeedbackFlagged {
		badRequest(c, "Estado de feedback desconocido.")
		return
	}

	res, err := a.Feedback.List(c.Request.Context(), status, page, limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *API) getFeedbackHandler(c *gin.Context) {
	fb, err := a.Feedback.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			notFound(c, "Feedback no encontrado.")
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (a *API) deleteFeedbackHandler(c *gin.Context) {
	if err := a.Feedback.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			notFound(c, "Feedback no encontrado.")
			return
		}
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) unbanHandler(c *gin.Context) {
	id := c.Param("id")
	if err := a.Enforcement.Unban(c.Request.Context(), id, callerID(c)); err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			notFound(c, "Usuario no encontrado.")
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": id, "banned": false})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Bad Request",
		"message": message,
		"status":  400,
	})
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "Not Found",
		"message": message,
		"status":  404,
	})
}

func internalError(c *gin.Context, err error) {
	logger.Error(fmt.Sprintf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err), "WebServer")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Internal Server Error",
		"message": "Ocurrió un error inesperado.",
		"status":  500,
	})
}
