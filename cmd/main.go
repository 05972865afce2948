package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"portfolio-chat/handler"
	"portfolio-chat/internal/config"
	"portfolio-chat/internal/usecase"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "portfolio-chat",
		Short:         "Portfolio chatbot backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newLambdaCmd(), newAskCmd())
	return root
}

// loadApp reads the configuration, sets up logging and wires the service.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		return nil, err
	}
	setupLogger(cfg.Env)
	a, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "err", err)
		return nil, err
	}
	return a, nil
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}

			srv, err := handler.NewServer(a.chat,
				handler.WithServerObserver(a.metrics),
				handler.WithServerAllowOrigins(a.cfg.HTTP.AllowOrigins...),
				handler.WithMetricsHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
				handler.WithTimeouts(a.cfg.HTTP.ReadTimeout, a.cfg.HTTP.WriteTimeout),
			)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR)")
	return cmd
}

func newLambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve API Gateway events as an AWS Lambda function",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := handler.NewHandler(a.chat,
				handler.WithObserver(a.metrics),
				handler.WithAllowOrigins(a.cfg.HTTP.AllowOrigins...),
			)
			if err != nil {
				return err
			}
			lambda.Start(h.Handle)
			return nil
		},
	}
}

func newAskCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message, or chat interactively when no message is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				res, err := ask(ctx, a.chat, strings.Join(args, " "), sessionID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, res.Response)
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				res, err := ask(ctx, a.chat, line, sessionID)
				if err != nil {
					var ue *usecase.Error
					if errors.As(err, &ue) && ue.Code == usecase.ErrorInvalidInput {
						fmt.Fprintln(out, "invalid message:", ue.Reason)
						continue
					}
					return err
				}
				sessionID = res.SessionID
				fmt.Fprintln(out, res.Response)
			}
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to continue")
	return cmd
}

func ask(ctx context.Context, chat *usecase.ChatService, message, sessionID string) (usecase.ChatOutput, error) {
	return chat.Chat(ctx, usecase.ChatInput{Message: message, SessionID: sessionID})
}
