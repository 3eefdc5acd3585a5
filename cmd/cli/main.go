package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/sanatorium/backend/internal/app"
	"github.com/zhouzirui/sanatorium/backend/internal/config"
	"github.com/zhouzirui/sanatorium/backend/pkg/logger"
)

type options struct {
	sessionID string
	envFile   string
	logFile   string
	logLevel  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "sanatorium-cli",
		Short:        "Chat with the sanatorium booking assistant in the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.sessionID, "session", "", "session id (random when empty)")
	cmd.Flags().StringVar(&opts.envFile, "env", ".env", "environment file to load")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "sanatorium-cli.log", "file receiving structured logs")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level")
	return cmd
}

func run(ctx context.Context, opts *options, out io.Writer) error {
	_ = godotenv.Load(opts.envFile)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Logs go to a file so they do not interleave with the conversation.
	zl, err := logger.NewFileOnly(opts.logFile, opts.logLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	application, err := app.Build(ctx, cfg, zl)
	if err != nil {
		return err
	}

	sessionID := opts.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	exit := tokenSet(cfg.Dialog.ExitTokens)
	reset := tokenSet(cfg.Dialog.ResetTokens)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	assistant := application.Personas.Default()
	fmt.Fprintf(out, "%s: %s\n", assistant.Name, assistant.Greeting())

	for {
		input, err := line.Prompt("Вы: ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}

		text := strings.TrimSpace(input)
		if text == "" {
			continue
		}
		line.AppendHistory(text)

		key := strings.ToLower(text)
		if _, ok := exit[key]; ok {
			fmt.Fprintf(out, "%s: До свидания!\n", assistant.Name)
			return nil
		}
		if _, ok := reset[key]; ok {
			if _, err := application.Dialog.Reset(ctx, sessionID); err != nil {
				zl.Debug("reset before first turn", zap.Error(err))
			}
			fmt.Fprintf(out, "%s: Начнём заново. Чем могу помочь?\n", assistant.Name)
			continue
		}

		reply, err := application.Dialog.Reply(ctx, sessionID, text)
		if err != nil {
			return fmt.Errorf("process turn: %w", err)
		}
		fmt.Fprintf(out, "%s: %s\n", assistant.Name, reply.Text)
	}
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return set
}
