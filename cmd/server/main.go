package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edibez/mcplab/internal/ai"
	"github.com/edibez/mcplab/internal/config"
	"github.com/edibez/mcplab/internal/logger"
)

const version = "0.1.0"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "mcplab",
		Short: "mcplab - mock LLM tool calling playground",
		Long: `mcplab classifies chat prompts into tool calls the way a function calling
model would, executes them and streams the steps to the browser.

Key commands:
  mcplab serve              Start the HTTP and websocket server
  mcplab classify <prompt>  Show the tool calls a prompt produces
  mcplab extract <prompt>   Show the crypto parameters of a prompt`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./configs/config.yaml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newClassifyCmd(),
		newExtractCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	gin.SetMode(cfg.Server.Mode)

	s, err := newServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.Warmer.Enabled {
		if err := s.warmer.Start(ctx, cfg.Warmer.Schedule); err != nil {
			return fmt.Errorf("start price warmer: %w", err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting mcplab", zap.String("addr", httpServer.Addr), zap.String("version", version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newClassifyCmd() *cobra.Command {
	var (
		memoryContext string
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "classify <prompt>",
		Short: "Show the tool calls a prompt is classified into",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			result := ai.ClassifyDetailed(prompt, ai.ClassifyOptions{
				UseGlobalMemory: memoryContext != "",
				MemoryContext:   memoryContext,
			})

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Fprintln(out, titleStyle.Render("Tool calls"))
			fmt.Fprintln(out, dimStyle.Render("intents: "+strings.Join(result.Intents, ", ")))
			if n := len(result.Intents); n > 0 && result.Intents[n-1] == "general" {
				fmt.Fprintln(out, warnStyle.Render("general information search added"))
			}
			for i, call := range result.Calls {
				argsJSON, err := json.Marshal(call.Arguments)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d. %s %s\n", i+1, successStyle.Render(call.Name), dimStyle.Render(string(argsJSON)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&memoryContext, "memory", "", "global memory context to classify against")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the classification as JSON")
	return cmd
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <prompt>",
		Short: "Show the crypto-price parameters extracted from a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := ai.ExtractCryptoParams(strings.Join(args, " "))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Crypto parameters"))
			fmt.Fprintf(out, "  action    %s\n", successStyle.Render(string(params.Action)))
			fmt.Fprintf(out, "  coin      %s\n", params.CoinID)
			fmt.Fprintf(out, "  currency  %s\n", params.Currency)
			if params.Action == ai.ActionCalculateStaking {
				fmt.Fprintf(out, "  amount    %g\n", params.Amount)
				fmt.Fprintf(out, "  years     %g\n", params.Years)
				fmt.Fprintf(out, "  apy       %g%%\n", params.APY)
			}
			if params.Query != "" {
				fmt.Fprintf(out, "  query     %s\n", dimStyle.Render(params.Query))
			}
			return nil
		},
	}
}
