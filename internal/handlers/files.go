package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taskdash/apiserver/internal/logger"
	"github.com/taskdash/apiserver/internal/services"
)

const (
	formFieldTask      = "task"
	formFieldFile      = "file"
	maxMultipartMemory = 8 << 20
	multipartOverhead  = 1 << 20
)

// FileHandler provides HTTP handlers for task attachments.
type FileHandler struct {
	files *services.FileService
	log   *slog.Logger
}

func NewFileHandler(files *services.FileService, log *slog.Logger) *FileHandler {
	return &FileHandler{files: files, log: log}
}

// FileRouter registers file routes. Every route requires authentication.
func FileRouter(r chi.Router, h *FileHandler) {
	r.Get("/", h.ListFiles)
	r.Post("/", h.UploadFile)
	r.Route("/{fileID}", func(r chi.Router) {
		r.Get("/", h.GetFile)
		r.Get("/download", h.DownloadFile)
		r.Delete("/", h.DeleteFile)
	})
}

func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	taskID, err := parseOptionalID(r, "task")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.files.List(r.Context(), actor, taskID, p.services())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, listResponse(p, list))
}

func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "fileID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, err := h.files.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to fetch file")
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// UploadFile accepts a multipart form with a "task" id and a "file" part.
func (h *FileHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "uploaded file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	taskID, err := strconv.Atoi(r.FormValue(formFieldTask))
	if err != nil || taskID < 1 {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	part, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer part.Close()

	file, err := h.files.Upload(r.Context(), actor, services.Upload{
		TaskID:   taskID,
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Content:  part,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to upload file")
		return
	}
	writeJSON(w, http.StatusCreated, file)
}

// DownloadFile streams the stored content as an attachment.
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "fileID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, body, err := h.files.Open(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to open file")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.FileSize, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.log.Warn("download interrupted", slog.Int("file_id", file.ID), logger.Err(err))
	}
}

func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "fileID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.files.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, h.log, err, "failed to delete file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
