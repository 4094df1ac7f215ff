package servecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remacdev/chatbot/pkg/config"
	"github.com/remacdev/chatbot/pkg/logger"
	"github.com/remacdev/chatbot/pkg/telemetry"
	"github.com/remacdev/chatbot/webui"
)

const serveLongDesc string = `Serve the chat web UI and its JSON API.

Configuration comes from chatbot.toml, a local .env file, and the
environment. Flags given here override all of them.

Examples:
  chatbot serve
  chatbot serve --listen :9000
  chatbot serve --endpoint http://192.168.1.42:11434/api/generate --debug`

const serveShortDesc string = "Serve the chat web UI"

type serveCommander struct {
	configPath string
	listen     string
	endpoint   string
	debug      bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config file")
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on")
	cmd.Flags().StringVarP(&cmder.endpoint, "endpoint", "e", "", "Generate endpoint URL")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = c.listen
	}
	if cmd.Flags().Changed("endpoint") {
		cfg.Endpoint = c.endpoint
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = c.debug
	}

	log := logger.NewLogger(cfg.Debug)
	defer log.Sync()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer("chatbot", log)
		if err != nil {
			return fmt.Errorf("could not initialize tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	return webui.New(cfg, log).Run()
}
