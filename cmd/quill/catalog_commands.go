package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available transcription models",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			models, defaultModel, err := client.Models(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(models))
			for _, model := range models {
				id := model.ID
				if id == defaultModel {
					id += " (default)"
				}
				rows = append(rows, []string{id, model.Name, model.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Description"},
				rows,
				nil,
			))
			return nil
		},
	}
}

func newFormatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List available output formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			formats, defaultFormat, err := client.Formats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "formats: %s (default %s)\n",
				strings.Join(formats, ", "), defaultFormat)
			return nil
		},
	}
}

func newLanguagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported language codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			languages, defaultLanguage, err := client.Languages(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(languages))
			for _, language := range languages {
				code := language.Code
				if code == defaultLanguage {
					code += " (default)"
				}
				rows = append(rows, []string{code, language.Name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Code", "Language"},
				rows,
				nil,
			))
			return nil
		},
	}
}
