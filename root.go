package main

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/nijaru/mcp-video/config"
	"github.com/nijaru/mcp-video/handlers"
	"github.com/nijaru/mcp-video/logger"
	"github.com/nijaru/mcp-video/media"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

type commandContext struct {
	envFile  *string
	logLevel *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logCloser io.Closer

	// newService builds the media pipeline; tests replace it.
	newService func(cfg *config.Config) (handlers.MediaService, error)
}

func newCommandContext(envFile, logLevel *string) *commandContext {
	return &commandContext{
		envFile:    envFile,
		logLevel:   logLevel,
		newService: defaultService,
	}
}

func defaultService(cfg *config.Config) (handlers.MediaService, error) {
	svc, err := media.New(*cfg, media.WithLogger(logrus.WithField("component", "media")))
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		path := defaultEnvFile
		if c.envFile != nil && strings.TrimSpace(*c.envFile) != "" {
			path = strings.TrimSpace(*c.envFile)
		}
		required := cmd.Flags().Changed("env-file")
		if err := config.LoadEnvFile(path, required); err != nil {
			c.configErr = err
			return
		}

		cfg := config.LoadConfig()
		if c.logLevel != nil && *c.logLevel != "" {
			cfg.LogLevel = *c.logLevel
		}
		if err := config.ValidateConfig(cfg); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// setupLogging sends console logs to stderr so command output on stdout stays
// clean. Only the server keeps a rotating log file.
func (c *commandContext) setupLogging(cfg *config.Config, withFile bool) error {
	opts := logger.Options{
		Level:  cfg.LogLevel,
		Output: os.Stderr,
	}
	if withFile {
		opts.Dir = cfg.LogDir
	}
	closer, err := logger.Setup(opts)
	if err != nil {
		return err
	}
	c.logCloser = closer
	return nil
}

func (c *commandContext) close() {
	if c.logCloser != nil {
		c.logCloser.Close()
	}
}

func newRootCommand() *cobra.Command {
	var envFileFlag string
	var logLevelFlag string

	ctx := newCommandContext(&envFileFlag, &logLevelFlag)
	return buildRootCommand(ctx)
}

func buildRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mcp-video",
		Short:         "Download online video and audio and transcribe speech to text",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			return ctx.setupLogging(cfg, cmd.Name() == "serve")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(ctx.envFile, "env-file", defaultEnvFile, "Path to a dotenv file")
	rootCmd.PersistentFlags().StringVar(ctx.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newDownloadCommand(ctx))
	rootCmd.AddCommand(newDownloadAudioCommand(ctx))
	rootCmd.AddCommand(newExtractTextCommand(ctx))

	return rootCmd
}

func (c *commandContext) service(cmd *cobra.Command) (handlers.MediaService, error) {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return nil, err
	}
	return c.newService(cfg)
}
