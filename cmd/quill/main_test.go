package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quill/internal/tasks"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	want := []string{
		"serve", "status", "submit", "tasks", "show", "result",
		"delete", "watch", "models", "formats", "languages", "config",
	}
	registered := make(map[string]bool)
	for _, cmd := range root.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestFilenameFromDisposition(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{`attachment; filename="talk_transcription_20260829_101500.srt"`, "talk_transcription_20260829_101500.srt"},
		{`attachment; filename="../../etc/passwd"`, "passwd"},
		{`attachment`, ""},
		{``, ""},
	}
	for _, tc := range cases {
		if got := filenameFromDisposition(tc.header); got != tc.want {
			t.Errorf("filenameFromDisposition(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestClientStatusAndTasks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/status/abcd1234":
			json.NewEncoder(w).Encode(tasks.Task{ID: "abcd1234", Status: tasks.StatusProcessing, Progress: 40})
		case r.URL.Path == "/tasks":
			json.NewEncoder(w).Encode(map[string]any{
				"tasks": []tasks.Task{{ID: "abcd1234"}, {ID: "ffff0000"}},
			})
		case strings.HasPrefix(r.URL.Path, "/status/"):
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "task not found"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	client := newAPIClient(strings.TrimPrefix(ts.URL, "http://"))

	task, err := client.Status(context.Background(), "abcd1234")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if task.ID != "abcd1234" || task.Progress != 40 {
		t.Errorf("task = %+v", task)
	}

	if _, err := client.Status(context.Background(), "nope0000"); err == nil {
		t.Error("unknown task should surface the API error")
	} else if !strings.Contains(err.Error(), "task not found") {
		t.Errorf("error = %v", err)
	}

	list, err := client.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len(tasks) = %d, want 2", len(list))
	}
}

func TestPrintTaskSkipsEmptyFields(t *testing.T) {
	root := newRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)

	printTask(root, &tasks.Task{
		ID:       "abcd1234",
		Filename: "talk.wav",
		Status:   tasks.StatusPending,
		Step:     tasks.StepPending,
		Settings: tasks.Settings{Model: "base", Format: "txt", Language: "auto"},
	})

	out := buf.String()
	if !strings.Contains(out, "abcd1234") || !strings.Contains(out, "talk.wav") {
		t.Errorf("output missing fields:\n%s", out)
	}
	if strings.Contains(out, "Error:") || strings.Contains(out, "Result:") {
		t.Errorf("empty fields should be omitted:\n%s", out)
	}
}
