package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"contacts-api/internal/domain"
	"contacts-api/internal/notifier"
	"contacts-api/internal/service"
	"contacts-api/internal/storage"
)

const currentUserKey = "currentUser"

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth          service.AuthService
	users         service.UserService
	contacts      service.ContactService
	mailer        *notifier.Mailer
	storage       storage.Service
	bucket        string
	keyPrefix     string
	jwtSecret     []byte
	emailTokenTTL time.Duration
	logger        *logrus.Logger
}

func NewHandler(
	auth service.AuthService,
	users service.UserService,
	contacts service.ContactService,
	mailer *notifier.Mailer,
	store storage.Service,
	bucket, keyPrefix string,
	jwtSecret []byte,
	emailTokenTTL time.Duration,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		auth:          auth,
		users:         users,
		contacts:      contacts,
		mailer:        mailer,
		storage:       store,
		bucket:        bucket,
		keyPrefix:     keyPrefix,
		jwtSecret:     jwtSecret,
		emailTokenTTL: emailTokenTTL,
		logger:        logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.register)
			auth.POST("/login", h.login)
			auth.POST("/refresh", h.refresh)
			auth.POST("/logout", h.logout)
		}

		users := api.Group("/users")
		{
			users.GET("/me", h.requireAuth, h.me)
			users.GET("/confirmed_email/:token", h.confirmedEmail)
			users.POST("/request_email", h.requestEmail)
			users.POST("/request_password_reset", h.requestPasswordReset)
			users.POST("/reset_password", h.resetPassword)
			users.PATCH("/avatar", h.requireAuth, h.requireAdmin, h.updateAvatar)
		}

		contacts := api.Group("/contacts", h.requireAuth)
		{
			contacts.POST("", h.createContact)
			contacts.GET("", h.listContacts)
			contacts.GET("/search", h.searchContacts)
			contacts.GET("/birthdays", h.upcomingBirthdays)
			contacts.GET("/:id", h.getContact)
			contacts.PUT("/:id", h.updateContact)
			contacts.DELETE("/:id", h.deleteContact)
		}

		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requireAuth resolves the bearer token into the current user and aborts
// with 401 otherwise.
func (h *Handler) requireAuth(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	user, err := h.auth.GetCurrentUser(c.Request.Context(), token)
	if err != nil {
		status, msg := statusForError(err)
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}

	c.Set(currentUserKey, user)
	c.Next()
}

func (h *Handler) requireAdmin(c *gin.Context) {
	user := currentUser(c)
	if user == nil || user.Role != domain.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) *domain.PublicUser {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.PublicUser)
	return user
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrEmailNotConfirmed),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrContactExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrContactNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrMalformedToken):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
