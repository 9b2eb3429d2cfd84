package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy/internal/app"
	"studybuddy/internal/transport/http/response"
)

type StudyHandler struct {
	study *app.StudyService
}

type TeachRequest struct {
	Style string `json:"style" binding:"max=32"`
	Topic string `json:"topic" binding:"required,max=500"`
}

type AskRequest struct {
	Style    string `json:"style" binding:"max=32"`
	Question string `json:"question" binding:"required,max=2000"`
}

type TestRequest struct {
	Questions int    `json:"questions" binding:"min=0,max=100"`
	Topic     string `json:"topic" binding:"max=500"`
}

func NewStudyHandler(study *app.StudyService) *StudyHandler {
	return &StudyHandler{study: study}
}

func (h *StudyHandler) Styles(c *gin.Context) {
	response.OK(c, h.study.Styles())
}

func (h *StudyHandler) Teach(c *gin.Context) {
	var req TeachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	h.serve(c, h.study.Teach, app.StudyInput{Style: req.Style, Topic: req.Topic}, "teach failed")
}

func (h *StudyHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	h.serve(c, h.study.Ask, app.StudyInput{Style: req.Style, Topic: req.Question}, "ask failed")
}

func (h *StudyHandler) Test(c *gin.Context) {
	var req TestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	h.serve(c, h.study.MakeTest, app.StudyInput{Topic: req.Topic, Questions: req.Questions}, "make test failed")
}

func (h *StudyHandler) serve(
	c *gin.Context,
	run func(context.Context, app.StudyInput) (*app.StudyResult, error),
	in app.StudyInput,
	fallback string,
) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	in.UserID = userID
	result, err := run(c.Request.Context(), in)
	if err != nil {
		writeError(c, err, fallback)
		return
	}
	response.OK(c, result)
}
