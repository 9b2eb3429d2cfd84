package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"studybuddy/internal/app"
	"studybuddy/internal/bootstrap"
	"studybuddy/internal/channel"
	"studybuddy/internal/config"
	"studybuddy/internal/retrieval"
	httptransport "studybuddy/internal/transport/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "studybuddy",
		Short:         "Study assistant that answers from your own course material",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (default: $CONFIG_FILE or configs/config.toml)")

	root.AddCommand(serveCmd())
	root.AddCommand(inspectCmd())
	root.AddCommand(hashSecretCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		if err := os.Setenv("CONFIG_FILE", configPath); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the Discord bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := bootstrap.NewLogger(cfg.Log, os.Stderr)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("bootstrap failed: %w", err)
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("close resources failed", "error", err)
				}
			}()

			server := &http.Server{
				Addr:              cfg.HTTPAddr(),
				Handler:           httptransport.NewRouter(a),
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("server starting", "addr", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
			if cfg.Discord.Enabled {
				bot := channel.NewDiscord(channel.DiscordConfig{
					Token: cfg.Discord.Token,
					Dispatcher: channel.NewDispatcher(channel.DispatcherConfig{
						Subjects:  a.Subjects,
						Questions: a.Questions,
						Library:   a.Library,
						Study:     a.Study,
						Prefix:    cfg.Discord.Prefix,
						Logger:    logger.With("component", "dispatcher"),
					}),
					Logger: logger.With("component", "discord"),
				})
				g.Go(func() error { return bot.Run(gctx) })
			}
			return g.Wait()
		},
	}
}

func inspectCmd() *cobra.Command {
	var (
		folder string
		query  string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show how a file is chunked and how chunks rank for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kind, ok := retrieval.ParseFolderKind(folder)
			if !ok {
				return fmt.Errorf("%w: folder must be lecture or practice", app.ErrInvalidInput)
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			r := cfg.Retrieval
			doc, err := retrieval.NewNormalizer(retrieval.NormalizerConfig{MaxUploadBytes: r.MaxUploadBytes}).
				Normalize(raw, filepath.Base(args[0]), kind)
			if err != nil {
				return err
			}
			registry, err := retrieval.NewRegistry(retrieval.ChunkPolicy{MinRunes: r.MinChunkRunes, MaxRunes: r.MaxChunkRunes})
			if err != nil {
				return err
			}
			scope := retrieval.NewScope("inspect", "inspect")
			chunks, err := registry.Insert(scope, doc)
			if err != nil {
				return err
			}

			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(out, "%s: %d pages, %d chunks\n\n", doc.OriginName, len(doc.Pages), len(chunks))
			fmt.Fprintln(out, "LABEL\tRUNES\tPREVIEW")
			for _, c := range chunks {
				fmt.Fprintf(out, "%s\t%d\t%s\n", retrieval.CitationLabel(c), len([]rune(c.Text)), preview(c.Text, 60))
			}
			if query != "" {
				ranker := retrieval.NewRanker(registry, retrieval.RankConfig{
					TermWeight:      r.TermWeight,
					FrequencyWeight: r.FrequencyWeight,
					PracticeBoost:   r.PracticeBoost,
				})
				ranked := ranker.Rank(scope, retrieval.Terms(query), retrieval.RankOptions{Request: retrieval.RequestAsk, Limit: limit})
				fmt.Fprintf(out, "\nquery %q: %d matches\n", query, len(ranked))
				fmt.Fprintln(out, "SCORE\tLABEL")
				for _, rk := range ranked {
					fmt.Fprintf(out, "%.2f\t%s\n", rk.Score, retrieval.CitationLabel(rk.Chunk))
				}
			}
			return out.Flush()
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "lecture", "folder kind: lecture or practice")
	cmd.Flags().StringVarP(&query, "query", "q", "", "rank chunks against this query")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum ranked chunks to show")
	return cmd
}

func hashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "Print the bcrypt hash to use as auth.client_secret_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := app.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return string(r)
}

