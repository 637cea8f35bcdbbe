package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"quill/internal/catalog"
	"quill/internal/tasks"
)

// apiClient talks to the daemon's HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(address string) *apiClient {
	return &apiClient{
		baseURL: "http://" + address,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type healthPayload struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type backendPayload struct {
	Backend        string  `json:"backend"`
	RealtimeFactor float64 `json:"realtime_factor"`
	DeviceSetting  string  `json:"device_setting"`
}

func (c *apiClient) Health(ctx context.Context) (healthPayload, error) {
	var payload healthPayload
	return payload, c.getJSON(ctx, "/health", &payload)
}

func (c *apiClient) Backend(ctx context.Context) (backendPayload, error) {
	var payload backendPayload
	return payload, c.getJSON(ctx, "/backend", &payload)
}

func (c *apiClient) Tasks(ctx context.Context) ([]tasks.Task, error) {
	var payload struct {
		Tasks []tasks.Task `json:"tasks"`
	}
	if err := c.getJSON(ctx, "/tasks", &payload); err != nil {
		return nil, err
	}
	return payload.Tasks, nil
}

func (c *apiClient) Status(ctx context.Context, taskID string) (*tasks.Task, error) {
	var task tasks.Task
	if err := c.getJSON(ctx, "/status/"+taskID, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *apiClient) Models(ctx context.Context) ([]catalog.ModelInfo, string, error) {
	var payload struct {
		Models  []catalog.ModelInfo `json:"models"`
		Default string              `json:"default"`
	}
	err := c.getJSON(ctx, "/models", &payload)
	return payload.Models, payload.Default, err
}

func (c *apiClient) Formats(ctx context.Context) ([]string, string, error) {
	var payload struct {
		Formats []string `json:"formats"`
		Default string   `json:"default"`
	}
	err := c.getJSON(ctx, "/formats", &payload)
	return payload.Formats, payload.Default, err
}

func (c *apiClient) Languages(ctx context.Context) ([]catalog.LanguageInfo, string, error) {
	var payload struct {
		Languages []catalog.LanguageInfo `json:"languages"`
		Default   string                 `json:"default"`
	}
	err := c.getJSON(ctx, "/languages", &payload)
	return payload.Languages, payload.Default, err
}

// submitOptions mirrors the /transcribe form fields.
type submitOptions struct {
	Model          string
	Format         string
	Language       string
	Diarize        bool
	MinSpeakers    int
	MaxSpeakers    int
	WordTimestamps bool
}

func (c *apiClient) Submit(ctx context.Context, path string, opts submitOptions) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}

	fields := map[string]string{
		"model":           opts.Model,
		"output_format":   opts.Format,
		"language":        opts.Language,
		"diarize":         strconv.FormatBool(opts.Diarize),
		"word_timestamps": strconv.FormatBool(opts.WordTimestamps),
	}
	if opts.MinSpeakers > 0 {
		fields["min_speakers"] = strconv.Itoa(opts.MinSpeakers)
	}
	if opts.MaxSpeakers > 0 {
		fields["max_speakers"] = strconv.Itoa(opts.MaxSpeakers)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	var created struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return created.TaskID, nil
}

// Result downloads the formatted transcript into dest (or the original
// filename in the working directory when dest is empty) and returns the
// written path.
func (c *apiClient) Result(ctx context.Context, taskID, dest string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/result/"+taskID, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	if dest == "" {
		dest = filenameFromDisposition(resp.Header.Get("Content-Disposition"))
		if dest == "" {
			dest = taskID + ".txt"
		}
	}
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", err
	}
	return dest, out.Close()
}

func (c *apiClient) Delete(ctx context.Context, taskID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/task/"+taskID, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}

// Watch streams task snapshots over the WebSocket endpoint until the task
// reaches a terminal status or the context is cancelled.
func (c *apiClient) Watch(ctx context.Context, taskID string, onUpdate func(*tasks.Task)) error {
	wsURL := "ws" + c.baseURL[len("http"):] + "/ws/" + taskID
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var task tasks.Task
		if err := json.Unmarshal(data, &task); err != nil || task.ID == "" {
			// Keep-alive frame.
			continue
		}
		onUpdate(&task)
		if task.Status.Terminal() {
			return nil
		}
	}
}

func (c *apiClient) getJSON(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s (HTTP %d)", payload.Error, resp.StatusCode)
	}
	return fmt.Errorf("request failed with HTTP %d", resp.StatusCode)
}

func filenameFromDisposition(header string) string {
	const marker = `filename="`
	start := bytes.Index([]byte(header), []byte(marker))
	if start < 0 {
		return ""
	}
	rest := header[start+len(marker):]
	end := bytes.IndexByte([]byte(rest), '"')
	if end < 0 {
		return ""
	}
	return filepath.Base(rest[:end])
}
