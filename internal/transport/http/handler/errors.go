package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy/internal/ai"
	"studybuddy/internal/app"
	"studybuddy/internal/prompt"
	"studybuddy/internal/retrieval"
	"studybuddy/internal/transport/http/middleware"
	"studybuddy/internal/transport/http/response"
)

type errorMapping struct {
	target error
	status int
	code   int
}

var errorMappings = []errorMapping{
	{app.ErrInvalidInput, http.StatusBadRequest, response.CodeBadRequest},
	{prompt.ErrUnknownStyle, http.StatusBadRequest, response.CodeUnknownStyle},
	{app.ErrInvalidCredential, http.StatusUnauthorized, response.CodeInvalidCredentials},
	{app.ErrSubjectNotFound, http.StatusNotFound, response.CodeNotFound},
	{app.ErrQuestionNotFound, http.StatusNotFound, response.CodeNotFound},
	{retrieval.ErrDocumentNotFound, http.StatusNotFound, response.CodeNotFound},
	{app.ErrNoRelevantMaterial, http.StatusNotFound, response.CodeNoMaterial},
	{app.ErrSubjectExists, http.StatusConflict, response.CodeSubjectExists},
	{app.ErrNoActiveSubject, http.StatusConflict, response.CodeNoActiveSubject},
	{retrieval.ErrUploadTooLarge, http.StatusRequestEntityTooLarge, response.CodeTooLarge},
	{retrieval.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, response.CodeUnsupportedFormat},
	{retrieval.ErrExtractionFailed, http.StatusUnprocessableEntity, response.CodeExtractionFailed},
	{app.ErrLLMConfig, http.StatusServiceUnavailable, response.CodeUnavailable},
	{ai.ErrNotConfigured, http.StatusServiceUnavailable, response.CodeUnavailable},
}

// writeError maps service errors to responses. Unknown errors hide their
// message behind fallback.
func writeError(c *gin.Context, err error, fallback string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			response.Error(c, m.status, m.code, err.Error())
			return
		}
	}
	_ = c.Error(err)
	response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
}

func getUserIDFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.ContextUserIDKey)
	return userID, userID != ""
}

func requireUser(c *gin.Context) (string, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return userID, ok
}
