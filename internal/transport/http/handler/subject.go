package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy/internal/app"
	"studybuddy/internal/transport/http/response"
)

type SubjectHandler struct {
	subjects *app.SubjectService
}

type CreateSubjectRequest struct {
	Name string `json:"name" binding:"required,max=128"`
	Game string `json:"game" binding:"max=128"`
}

type SwitchSubjectRequest struct {
	Name string `json:"name" binding:"required,max=128"`
}

type SetGameRequest struct {
	Game string `json:"game" binding:"max=128"`
}

func NewSubjectHandler(subjects *app.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjects: subjects}
}

func (h *SubjectHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	subject, err := h.subjects.Create(userID, req.Name, req.Game)
	if err != nil {
		writeError(c, err, "create subject failed")
		return
	}
	response.OK(c, subject)
}

func (h *SubjectHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	subjects, err := h.subjects.List(userID)
	if err != nil {
		writeError(c, err, "list subjects failed")
		return
	}
	response.OK(c, subjects)
}

func (h *SubjectHandler) Active(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	subject, err := h.subjects.Active(userID)
	if err != nil {
		writeError(c, err, "get active subject failed")
		return
	}
	response.OK(c, gin.H{"subject": subject, "game": h.subjects.GameOf(subject)})
}

func (h *SubjectHandler) Switch(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req SwitchSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	subject, err := h.subjects.Switch(userID, req.Name)
	if err != nil {
		writeError(c, err, "switch subject failed")
		return
	}
	response.OK(c, subject)
}

func (h *SubjectHandler) SetGame(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req SetGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	subject, err := h.subjects.SetGame(userID, req.Game)
	if err != nil {
		writeError(c, err, "set game failed")
		return
	}
	response.OK(c, gin.H{"subject": subject, "game": h.subjects.GameOf(subject)})
}

func (h *SubjectHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	name := c.Param("name")
	if err := h.subjects.Delete(c.Request.Context(), userID, name); err != nil {
		writeError(c, err, "delete subject failed")
		return
	}
	response.OK(c, gin.H{"deleted_subject": name})
}
