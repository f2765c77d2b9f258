package main

import (
	"github.com/danmuck/appctl/internal/controller"
	"github.com/danmuck/appctl/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWith(controller.New)
}

func newRootCommandWith(newClient clientFactory) *cobra.Command {
	var configFlag string
	var hostFlag string
	var secretFlag string
	var outputFlag string

	ctx := newCommandContext(newClient, &configFlag, &hostFlag, &secretFlag, &outputFlag)

	rootCmd := &cobra.Command{
		Use:           "appctl",
		Short:         "Controller client, gateway and local stub",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime()
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Client configuration file (TOML)")
	flags.StringVar(&hostFlag, "host", "", "Controller host; the port is always 17443")
	flags.StringVar(&secretFlag, "secret", "", "Controller secret (or set "+EnvSecret+")")
	flags.StringVarP(&outputFlag, "output", "o", "auto", "Output format: auto, table or json")

	for _, cmd := range newControllerCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newStubCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
