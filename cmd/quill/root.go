package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"quill/internal/config"
)

// commandContext carries lazily-loaded configuration and the persistent
// flag values shared by all subcommands.
type commandContext struct {
	configFlag  *string
	addressFlag *string

	once sync.Once
	cfg  *config.Config
	err  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		c.cfg, _, _, c.err = config.Load(strings.TrimSpace(*c.configFlag))
	})
	return c.cfg, c.err
}

// address returns the API address to contact: the --address override or
// the configured bind address.
func (c *commandContext) address() (string, error) {
	if addr := strings.TrimSpace(*c.addressFlag); addr != "" {
		return addr, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Paths.APIBind, nil
}

func (c *commandContext) client() (*apiClient, error) {
	addr, err := c.address()
	if err != nil {
		return nil, err
	}
	return newAPIClient(addr), nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var addressFlag string

	ctx := &commandContext{configFlag: &configFlag, addressFlag: &addressFlag}

	rootCmd := &cobra.Command{
		Use:           "quill",
		Short:         "Quill transcription service CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&addressFlag, "address", "", "Daemon API address (host:port)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newTasksCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newResultCommand(ctx))
	rootCmd.AddCommand(newDeleteCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newModelsCommand(ctx))
	rootCmd.AddCommand(newFormatsCommand(ctx))
	rootCmd.AddCommand(newLanguagesCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
