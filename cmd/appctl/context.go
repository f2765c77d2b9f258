package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/danmuck/appctl/internal/controller"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// clientFactory builds the controller client for one command run.
type clientFactory func(controller.Config) (*controller.Client, error)

type commandContext struct {
	configFlag *string
	hostFlag   *string
	secretFlag *string
	outputFlag *string

	newClient clientFactory

	configOnce sync.Once
	config     cliConfig
	configErr  error
}

func newCommandContext(newClient clientFactory, configFlag, hostFlag, secretFlag, outputFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		hostFlag:   hostFlag,
		secretFlag: secretFlag,
		outputFlag: outputFlag,
		newClient:  newClient,
	}
}

// ensureConfig resolves file, environment and flags once; flags win.
func (c *commandContext) ensureConfig() (cliConfig, error) {
	c.configOnce.Do(func() {
		cfg, err := loadCLIConfig(deref(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		cfg.applyEnv()
		if host := strings.TrimSpace(deref(c.hostFlag)); host != "" {
			cfg.Controller.Host = host
		}
		if secret := deref(c.secretFlag); secret != "" {
			cfg.Controller.Secret = secret
		}
		logger := log.Logger
		cfg.Controller.Logger = &logger
		cfg.Gateway.Logger = &logger
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) withClient(fn func(*controller.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client, err := c.newClient(cfg.Controller)
	if err != nil {
		return fmt.Errorf("connect to controller: %w", err)
	}
	return fn(client)
}

func (c *commandContext) output(cmd *cobra.Command) (outputMode, error) {
	return resolveOutput(deref(c.outputFlag), cmd.OutOrStdout())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
