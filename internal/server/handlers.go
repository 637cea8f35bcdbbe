package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"quill/internal/catalog"
	"quill/internal/deps"
	"quill/internal/fileutil"
	"quill/internal/logging"
	"quill/internal/media"
	"quill/internal/services"
	"quill/internal/tasks"
)

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	maxBytes := int64(s.cfg.Workflow.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.writeError(w, status, fmt.Sprintf("invalid upload: %v", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	settings, err := parseSettings(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !media.IsSupported(header.Filename) {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported file type: %s", strings.ToLower(filepath.Ext(header.Filename))))
		return
	}

	uploadPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.logger.Error("upload save failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	sizeMB := float64(header.Size) / (1024 * 1024)
	task := s.registry.Create(header.Filename, uploadPath, sizeMB, settings)
	s.sched.Dispatch(task)

	ctx := services.WithRequestID(services.WithTaskID(r.Context(), task.ID), requestID(r))
	logging.WithContext(ctx, s.logger).Info("upload accepted",
		logging.String("filename", header.Filename),
		logging.String("model", settings.Model),
		logging.String("format", settings.Format),
	)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"task_id": task.ID,
		"status":  task.Status,
	})
}

// parseSettings validates the multipart form fields against the catalog.
func parseSettings(r *http.Request) (tasks.Settings, error) {
	model := formValue(r, "model", catalog.DefaultModel)
	if !catalog.IsModel(model) {
		return tasks.Settings{}, fmt.Errorf("unknown model: %s", model)
	}
	outputFormat := formValue(r, "output_format", catalog.DefaultFormat)
	if !catalog.IsFormat(outputFormat) {
		return tasks.Settings{}, fmt.Errorf("unknown format: %s", outputFormat)
	}
	language := formValue(r, "language", catalog.DefaultLanguage)
	if !catalog.IsLanguage(language) {
		return tasks.Settings{}, fmt.Errorf("unknown language: %s", language)
	}

	settings := tasks.Settings{
		Model:          model,
		Language:       language,
		Format:         outputFormat,
		Diarize:        parseBool(formValue(r, "diarize", "false")),
		WordTimestamps: parseBool(formValue(r, "word_timestamps", "false")),
	}

	var err error
	if settings.MinSpeakers, err = parseSpeakers(r, "min_speakers"); err != nil {
		return tasks.Settings{}, err
	}
	if settings.MaxSpeakers, err = parseSpeakers(r, "max_speakers"); err != nil {
		return tasks.Settings{}, err
	}
	if settings.MaxSpeakers > 0 && settings.MinSpeakers > settings.MaxSpeakers {
		return tasks.Settings{}, fmt.Errorf("min_speakers %d exceeds max_speakers %d",
			settings.MinSpeakers, settings.MaxSpeakers)
	}
	return settings, nil
}

func formValue(r *http.Request, key, fallback string) string {
	value := strings.TrimSpace(r.FormValue(key))
	if value == "" {
		return fallback
	}
	return value
}

func parseBool(value string) bool {
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}

func parseSpeakers(r *http.Request, key string) (int, error) {
	value := strings.TrimSpace(r.FormValue(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return 0, fmt.Errorf("invalid %s: %s", key, value)
	}
	return parsed, nil
}

// saveUpload streams the part into the upload directory under a unique
// prefixed name.
func (s *Server) saveUpload(file io.Reader, filename string) (string, error) {
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	path := filepath.Join(s.cfg.Paths.UploadDir, prefix+"_"+fileutil.SanitizeFileName(filepath.Base(filename)))

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := pathID(r.URL.Path, "/status/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	task, err := s.registry.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := pathID(r.URL.Path, "/result/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	task, err := s.registry.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if task.Status != tasks.StatusCompleted {
		s.writeError(w, http.StatusBadRequest, "task not completed")
		return
	}
	if _, err := os.Stat(task.ResultPath); err != nil {
		s.writeError(w, http.StatusNotFound, "result file not found")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(task.ResultPath)))
	http.ServeFile(w, r, task.ResultPath)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := pathID(r.URL.Path, "/task/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	task, err := s.registry.Delete(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	if task.ResultPath != "" {
		removeIfExists(task.ResultPath, s.logger)
		removeIfExists(tasks.MetaPath(task.ResultPath), s.logger)
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": s.registry.List()})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/ws/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	// Unknown ids still get a connection: the task may be created moments
	// later and the subscriber will catch its first mutation. The hub
	// fetches the snapshot only after registering the subscriber.
	snapshot := func() *tasks.Task {
		task, err := s.registry.Get(id)
		if err != nil {
			return nil
		}
		return task
	}

	if err := s.hub.Subscribe(w, r, id, snapshot); err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"models":  catalog.Models(),
		"default": catalog.DefaultModel,
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"formats": catalog.Formats(),
		"default": catalog.DefaultFormat,
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"languages": catalog.Languages(),
		"default":   catalog.DefaultLanguage,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	checks := deps.CheckBinaries(deps.Requirements(s.cfg))
	dependencies := make(map[string]bool, len(checks))
	for _, check := range checks {
		dependencies[check.Name] = check.Available
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"version":      Version,
		"dependencies": dependencies,
	})
}

func (s *Server) handleBackend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	backend := s.resolver.Resolve()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"backend":         backend.Name(),
		"realtime_factor": backend.RealtimeFactor(),
		"device_setting":  s.cfg.Transcribe.Device,
	})
}

// requestID honors a caller-supplied X-Request-ID, minting one otherwise.
func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" {
		return id
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// pathID extracts the trailing id from prefix-routed paths.
func pathID(path, prefix string) (string, bool) {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func removeIfExists(path string, logger *slog.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("file removal failed",
			logging.String("path", filepath.Base(path)),
			logging.Error(err),
		)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
