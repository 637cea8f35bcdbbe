package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"quill/internal/tasks"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var opts submitOptions
	var watch bool

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a media file for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			taskID, err := client.Submit(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s created\n", taskID)
			if !watch {
				return nil
			}
			return watchTask(cmd, client, taskID)
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Whisper model id")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format (txt, srt, vtt, json, tsv)")
	cmd.Flags().StringVarP(&opts.Language, "language", "l", "", "Language code, auto to detect")
	cmd.Flags().BoolVar(&opts.Diarize, "diarize", false, "Label speakers")
	cmd.Flags().IntVar(&opts.MinSpeakers, "min-speakers", 0, "Minimum speaker count hint")
	cmd.Flags().IntVar(&opts.MaxSpeakers, "max-speakers", 0, "Maximum speaker count hint")
	cmd.Flags().BoolVar(&opts.WordTimestamps, "word-timestamps", false, "Request per-word timing")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Stream progress until the task finishes")
	return cmd
}

func newTasksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List all tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			list, err := client.Tasks(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tasks")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, task := range list {
				rows = append(rows, []string{
					task.ID,
					string(task.Status),
					strconv.Itoa(task.Progress) + "%",
					task.Filename,
					task.Settings.Model,
					task.Settings.Format,
					task.CreatedAt,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Status", "Progress", "File", "Model", "Format", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show the full record of one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			task, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTask(cmd, task)
			return nil
		},
	}
}

func newResultCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "result <task-id>",
		Short: "Download the formatted transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			dest, err := client.Result(cmd.Context(), args[0], output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination path (defaults to the server's filename)")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task and its result files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s deleted\n", args[0])
			return nil
		},
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <task-id>",
		Short: "Stream live progress for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			return watchTask(cmd, client, args[0])
		},
	}
}

func watchTask(cmd *cobra.Command, client *apiClient, taskID string) error {
	out := cmd.OutOrStdout()
	var last *tasks.Task
	err := client.Watch(cmd.Context(), taskID, func(task *tasks.Task) {
		last = task
		line := fmt.Sprintf("[%3d%%] %-13s", task.Progress, task.Step)
		if task.Message != "" {
			line += " " + task.Message
		}
		fmt.Fprintln(out, line)
	})
	if err != nil {
		return err
	}
	if last == nil {
		return nil
	}

	switch last.Status {
	case tasks.StatusCompleted:
		fmt.Fprintf(out, "completed: %d words", last.WordCount)
		if last.SpeakersDetected > 0 {
			fmt.Fprintf(out, ", %d speakers", last.SpeakersDetected)
		}
		fmt.Fprintln(out)
	case tasks.StatusFailed:
		return fmt.Errorf("task failed: %s", last.Error)
	}
	return nil
}

func printTask(cmd *cobra.Command, task *tasks.Task) {
	out := cmd.OutOrStdout()
	lines := []struct {
		label string
		value string
	}{
		{"ID", task.ID},
		{"File", task.Filename},
		{"Status", string(task.Status)},
		{"Step", stepDisplay(task)},
		{"Progress", strconv.Itoa(task.Progress) + "%"},
		{"Size", sizeDisplay(task)},
		{"Model", task.Settings.Model},
		{"Format", task.Settings.Format},
		{"Language", displayLanguage(task)},
		{"Diarize", strconv.FormatBool(task.Settings.Diarize)},
		{"Duration", fmt.Sprintf("%.1fs", task.Duration)},
		{"Words", strconv.Itoa(task.WordCount)},
		{"Speakers", strconv.Itoa(task.SpeakersDetected)},
		{"Created", task.CreatedAt},
		{"Started", task.StartedAt},
		{"Completed", task.CompletedAt},
		{"Result", task.ResultPath},
		{"Error", task.Error},
	}
	for _, line := range lines {
		if line.value == "" {
			continue
		}
		fmt.Fprintf(out, "%-10s %s\n", line.label+":", line.value)
	}
}

func stepDisplay(task *tasks.Task) string {
	if task.StepName != "" {
		return task.StepName
	}
	return string(task.Step)
}

func sizeDisplay(task *tasks.Task) string {
	if task.FileSizeMB <= 0 {
		return ""
	}
	return fmt.Sprintf("%.2f MB", task.FileSizeMB)
}

func displayLanguage(task *tasks.Task) string {
	if task.Language != "" && task.Language != task.Settings.Language {
		return fmt.Sprintf("%s (requested %s)", task.Language, task.Settings.Language)
	}
	if task.Language != "" {
		return task.Language
	}
	return task.Settings.Language
}
