package main

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/appctl/internal/auth"
	"github.com/danmuck/appctl/internal/config"
	"github.com/danmuck/appctl/internal/controller"
	"github.com/danmuck/appctl/internal/gateway"
	"github.com/danmuck/appctl/internal/stub"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only controller queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			gwCfg := cfg.Gateway
			if strings.TrimSpace(addr) != "" {
				gwCfg.Addr = addr
			}
			return ctx.withClient(func(c *controller.Client) error {
				return gateway.New(gwCfg, c).Run(cmd.Context())
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides gateway.addr)")
	return cmd
}

func newStubCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var secret string
	var certFile string
	var keyFile string

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run a local stand-in controller for development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(addr) == "" {
				addr = cfg.StubAddr
			}
			if secret == "" {
				secret = cfg.StubSecret
			}
			if secret == "" {
				return fmt.Errorf("stub secret required")
			}

			tlsCfg, err := stubTLS(addr, certFile, keyFile)
			if err != nil {
				return err
			}
			logger := log.Logger.With().Str("component", "stub").Logger()
			srv, err := stub.Listen(stub.Config{
				Addr:      addr,
				TLS:       tlsCfg,
				Validator: auth.SharedSecret{Secret: secret},
				Logger:    &logger,
			})
			if err != nil {
				return err
			}
			stub.NewState().Install(srv)
			logger.Info().Str("addr", srv.Addr()).Str("secret", auth.Redact(secret)).Msg("stub controller listening")
			return srv.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides stub.addr)")
	cmd.Flags().StringVar(&secret, "stub-secret", "", "Secret the stub accepts (overrides stub.secret)")
	cmd.Flags().StringVar(&certFile, "cert", "", "TLS certificate file; a throwaway certificate is generated when empty")
	cmd.Flags().StringVar(&keyFile, "key", "", "TLS private key file")
	return cmd
}

func stubTLS(addr, certFile, keyFile string) (*tls.Config, error) {
	if certFile != "" || keyFile != "" {
		if certFile == "" || keyFile == "" {
			return nil, fmt.Errorf("--cert and --key must be set together")
		}
		return stub.LoadTLS(certFile, keyFile)
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("parse stub addr: %w", err)
	}
	return stub.EphemeralTLS(host, "localhost")
}

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var kind string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample client or deployment configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = kind + ".toml"
			}
			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}
			if err := config.WriteTemplate(target, kind, overwrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample %s configuration to %s\n", kind, target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination file (default <kind>.toml)")
	cmd.Flags().StringVar(&kind, "kind", "client", "Template kind: client or deployment")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing file")
	return cmd
}
