package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studybuddy/internal/app"
	"studybuddy/internal/transport/http/response"
)

type QuestionHandler struct {
	questions *app.QuestionService
}

type AddQuestionRequest struct {
	Question string `json:"question" binding:"required,max=2000"`
	Answer   string `json:"answer" binding:"max=2000"`
}

func NewQuestionHandler(questions *app.QuestionService) *QuestionHandler {
	return &QuestionHandler{questions: questions}
}

func (h *QuestionHandler) Add(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req AddQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	entry, err := h.questions.Add(userID, req.Question, req.Answer)
	if err != nil {
		writeError(c, err, "add question failed")
		return
	}
	response.OK(c, entry)
}

func (h *QuestionHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	entries, err := h.questions.List(userID)
	if err != nil {
		writeError(c, err, "list questions failed")
		return
	}
	response.OK(c, entries)
}

// Remove deletes the n-th question as numbered by List.
func (h *QuestionHandler) Remove(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid question number")
		return
	}
	entry, err := h.questions.Remove(userID, n)
	if err != nil {
		writeError(c, err, "remove question failed")
		return
	}
	response.OK(c, entry)
}
