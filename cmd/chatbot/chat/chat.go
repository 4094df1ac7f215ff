package chatcmder

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remacdev/chatbot/pkg/chat"
	"github.com/remacdev/chatbot/pkg/config"
	"github.com/remacdev/chatbot/pkg/llm"
	"github.com/remacdev/chatbot/pkg/logger"
	"github.com/remacdev/chatbot/pkg/runlog"
	"github.com/remacdev/chatbot/pkg/tokens"
)

const chatLongDesc string = `Chat with the model from the terminal.

Opens a full-screen conversation against the configured generate
endpoint. Turn timings show under each reply; ctrl+a opens the
analytics panel.

Examples:
  chatbot chat
  chatbot chat --model llama3 --n-predict 256
  chatbot chat --log-file chat.log --debug`

const chatShortDesc string = "Chat with the model in the terminal"

type chatCommander struct {
	configPath string
	endpoint   string
	model      string
	nPredict   int
	logFile    string
	debug      bool
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config file")
	cmd.Flags().StringVarP(&cmder.endpoint, "endpoint", "e", "", "Generate endpoint URL")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name")
	cmd.Flags().IntVar(&cmder.nPredict, "n-predict", 0, "Max tokens per reply")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Append logs to this file")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	if cmd.Flags().Changed("endpoint") {
		cfg.Endpoint = c.endpoint
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = c.model
	}
	if cmd.Flags().Changed("n-predict") {
		cfg.NPredict = c.nPredict
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = c.debug
	}

	if reason := cfg.ChatDisabledReason(); reason != "" {
		return errors.New(reason)
	}

	// The TUI owns the terminal, so logs either go to a file or nowhere.
	log := zap.NewNop()
	if c.logFile != "" {
		log, err = logger.NewFileLogger(c.logFile, cfg.Debug)
		if err != nil {
			return err
		}
		defer log.Sync()
	}

	runner := chat.NewRunner(chat.RunnerConfig{
		Endpoint:  cfg.Endpoint,
		Model:     cfg.Model,
		MaxTokens: cfg.NPredict,
		Client:    llm.NewClient(llm.WithLogger(log)),
		RunLog: runlog.New(runlog.Config{
			URL:     cfg.LangSmith.URL,
			APIKey:  cfg.LangSmith.APIKey,
			Project: cfg.LangSmith.Project,
			AppURL:  cfg.AppURL,
			Logger:  log,
		}),
		Tokens: tokens.NewCounter(),
		Logger: log,
	})
	sc := chat.NewContext(uuid.New().String(), cfg.DefaultSettings())

	m := newModel(runner, sc, cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}
