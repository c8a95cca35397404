package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/book-expert/logger"
	"github.com/spf13/cobra"

	"github.com/book-expert/motion-governor/internal/config"
	"github.com/book-expert/motion-governor/internal/pathutil"
	"github.com/book-expert/motion-governor/internal/profilestore"
)

const cliLogFile = "motiongov.log"

// commandContext lazily loads the configuration, logger and profile store shared by
// every subcommand.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	log     *logger.Logger
	logErr  error

	store *profilestore.Store
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			c.config = config.Default()

			return
		}

		c.config, c.configErr = config.LoadFile(path)
	})

	return c.config, c.configErr
}

func (c *commandContext) logger() (*logger.Logger, error) {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logErr = err

			return
		}

		err = pathutil.EnsureDir(cfg.Paths.BaseLogsDir)
		if err != nil {
			c.logErr = err

			return
		}

		c.log, c.logErr = logger.New(cfg.Paths.BaseLogsDir, cliLogFile)
	})

	return c.log, c.logErr
}

// profileStore opens the registry. With create unset a missing database yields nil
// rather than a new empty file.
func (c *commandContext) profileStore(create bool) (*profilestore.Store, error) {
	if c.store != nil {
		return c.store, nil
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	if !create {
		_, statErr := os.Stat(cfg.Paths.ProfileDB)
		if errors.Is(statErr, os.ErrNotExist) {
			return nil, nil
		}
	}

	c.store, err = profilestore.Open(cfg.Paths.ProfileDB)
	if err != nil {
		return nil, fmt.Errorf("open profile registry: %w", err)
	}

	return c.store, nil
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}

	if c.log != nil {
		_ = c.log.Close()
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "motiongov",
		Short:         "Govern talking-head motion coefficients",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			_, err := ctx.ensureConfig()

			return err
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (TOML)")

	rootCmd.AddCommand(newGovernCommand(ctx))
	rootCmd.AddCommand(newStyleCommand(ctx))
	rootCmd.AddCommand(newTimingCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newSubmitCommand(ctx))

	return rootCmd
}
