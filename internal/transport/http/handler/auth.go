package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy/internal/app"
	"studybuddy/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type TokenRequest struct {
	ClientID     string `json:"client_id" binding:"required,max=64"`
	ClientSecret string `json:"client_secret" binding:"required,max=128"`
	UserID       string `json:"user_id" binding:"required,max=64"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.IssueToken(app.TokenInput{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		UserID:       req.UserID,
	})
	if err != nil {
		writeError(c, err, "issue token failed")
		return
	}
	response.OK(c, result)
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{"user_id": userID})
}
