package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy/internal/app"
	"studybuddy/internal/retrieval"
	"studybuddy/internal/transport/http/response"
)

// multipartOverhead is allowed on top of the file size cap for form fields
// and boundaries.
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	library *app.LibraryService
}

func NewDocumentHandler(library *app.LibraryService) *DocumentHandler {
	return &DocumentHandler{library: library}
}

// Upload accepts a multipart form with "file" and "folder" (lecture or practice).
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	maxBytes := h.library.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(maxBytes)+multipartOverhead)

	folder, ok := retrieval.ParseFolderKind(c.PostForm("folder"))
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "folder must be lecture or practice")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > int64(maxBytes) {
		writeError(c, fmt.Errorf("%s is %d bytes (max %d): %w", file.Filename, file.Size, maxBytes, retrieval.ErrUploadTooLarge), "")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)+1))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	result, err := h.library.Upload(c.Request.Context(), app.UploadInput{
		UserID:   userID,
		Filename: file.Filename,
		Folder:   folder,
		Raw:      raw,
	})
	if err != nil {
		writeError(c, err, "upload failed")
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	docs, err := h.library.List(userID)
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	origin := c.Param("origin")
	if err := h.library.Delete(c.Request.Context(), userID, origin); err != nil {
		writeError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document": origin})
}
