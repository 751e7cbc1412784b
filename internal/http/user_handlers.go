package http

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"contacts-api/internal/domain"
	"contacts-api/internal/service"
	"contacts-api/internal/storage"
)

// checkEmailMessage is returned by the email request endpoints regardless of
// whether the address exists, so a prober cannot confirm accounts.
const checkEmailMessage = "check your email for further instructions"

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.mailer != nil {
		token, err := service.CreateEmailToken(h.jwtSecret, user.Email, h.emailTokenTTL)
		if err != nil {
			h.logger.Warnf("create confirmation token: %v", err)
		} else {
			h.mailer.SendConfirmationAsync(user.Email, user.Username, token)
		}
	}

	c.JSON(http.StatusCreated, user.Public())
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	pair, err := h.issueTokenPair(c, user.ID, user.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user, err := h.auth.ValidateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}

	// issue the new pair before revoking the old token, so a failure
	// mid-rotation leaves the session usable
	pair, err := h.issueTokenPair(c, user.ID, user.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.auth.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h *Handler) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	access := bearerToken(c)
	if access == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	ctx := c.Request.Context()
	if err := h.auth.RevokeAccessToken(ctx, access); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.auth.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *Handler) confirmedEmail(c *gin.Context) {
	already, err := h.users.ConfirmEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if already {
		c.JSON(http.StatusOK, gin.H{"message": "your email is already confirmed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email confirmed"})
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) requestEmail(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err == nil && !user.Confirmed && h.mailer != nil {
		token, err := service.CreateEmailToken(h.jwtSecret, user.Email, h.emailTokenTTL)
		if err != nil {
			h.logger.Warnf("create confirmation token: %v", err)
		} else {
			h.mailer.SendConfirmationAsync(user.Email, user.Username, token)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": checkEmailMessage})
}

func (h *Handler) requestPasswordReset(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err == nil && h.mailer != nil {
		token, err := service.CreateEmailToken(h.jwtSecret, user.Email, h.emailTokenTTL)
		if err != nil {
			h.logger.Warnf("create reset token: %v", err)
		} else {
			h.mailer.SendPasswordResetAsync(user.Email, user.Username, token)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": checkEmailMessage})
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password has been reset"})
}

func (h *Handler) updateAvatar(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage service not configured"})
		return
	}
	user := currentUser(c)

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	key := fmt.Sprintf("%s/%s-%s%s",
		strings.Trim(h.keyPrefix, "/"),
		user.Username,
		uuid.NewString(),
		filepath.Ext(file.Filename),
	)
	url, err := h.storage.UploadAvatar(c.Request.Context(), storage.UploadInput{
		Bucket:      h.bucket,
		Key:         key,
		ContentType: file.Header.Get("Content-Type"),
		Body:        src,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	updated, err := h.users.UpdateAvatar(c.Request.Context(), user.Email, url)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated.Public())
}

// issueTokenPair creates a fresh access/refresh pair for the user, recording
// the caller's IP and user agent on the refresh row.
func (h *Handler) issueTokenPair(c *gin.Context, userID int64, username string) (*domain.TokenPair, error) {
	access, err := h.auth.CreateAccessToken(username)
	if err != nil {
		return nil, err
	}
	refresh, err := h.auth.CreateRefreshToken(c.Request.Context(), userID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		TokenType:    "bearer",
		RefreshToken: refresh,
	}, nil
}
