// deepscout is a terminal client for deep web research: an agent that
// plans search queries, researches the web, verifies its findings, and
// reports back with cited sources.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deepscout/cmd/deepscout/chat"
	"deepscout/internal/agent"
	"deepscout/internal/config"
	"deepscout/internal/confirm"
	"deepscout/internal/export"
	"deepscout/internal/logging"
	"deepscout/internal/session"
	"deepscout/internal/storage"
	"deepscout/internal/timeline"
	"deepscout/internal/transport"
)

var (
	cfg        config.Config
	zlog       *zap.Logger
	flagDebug  bool
	flagEffort string
	flagModel  string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "deepscout",
		Short: "Deep research agent with a terminal chat client",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if flagDebug {
				cfg.Logging.Debug = true
				cfg.Logging.Level = "debug"
			}
			stateDir, err := cfg.EnsureStateDir()
			if err != nil {
				return err
			}
			if err := logging.Configure(cfg.Logging.Debug, cfg.Logging.Level, stateDir); err != nil {
				return err
			}
			if cfg.Logging.Debug {
				zlog, err = zap.NewDevelopment()
			} else {
				zlog, err = zap.NewProduction()
			}
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if zlog != nil {
				_ = zlog.Sync()
			}
			logging.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&flagEffort, "effort", "medium", "research effort: low, medium, high")

	root.AddCommand(askCmd(), sessionsCmd(), exportCmd())
	return root
}

// buildStack assembles the engine and stores shared by the subcommands.
func buildStack(ctx context.Context) (*agent.Engine, *session.Manager, storage.Store, error) {
	gen, err := agent.NewGenAIGenerator(ctx, cfg.LLM.APIKey)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("set GEMINI_API_KEY or llm.api_key: %w", err)
	}
	if cfg.Search.TavilyAPIKey == "" {
		return nil, nil, nil, fmt.Errorf("set TAVILY_API_KEY or search.tavily_api_key")
	}

	engine := agent.NewEngine(gen, agent.NewTavilyClient(cfg.Search.TavilyAPIKey), agent.Config{
		QueryModel:       cfg.LLM.QueryModel,
		ReasoningModel:   cfg.LLM.ReasoningModel,
		AnswerModel:      cfg.LLM.AnswerModel,
		MaxSearchResults: cfg.Search.MaxResults,
	})

	store, err := storage.OpenSQLite(filepath.Join(cfg.StateDir, "deepscout.db"))
	if err != nil {
		return nil, nil, nil, err
	}
	return engine, session.NewManager(store), store, nil
}

func runChat() error {
	engine, sessions, store, err := buildStack(context.Background())
	if err != nil {
		return err
	}
	defer store.Close()

	tl := timeline.NewStore()
	return chat.RunInteractiveChat(chat.Config{
		Transport: engine,
		Sessions:  sessions,
		Timeline:  tl,
		Confirm:   confirm.NewCoordinator(engine, tl, cfg.LLM.ReasoningModel),
		Effort:    flagEffort,
		Model:     cfg.LLM.ReasoningModel,
	})
}

// askCmd runs one research exchange without the TUI and prints the
// answer to stdout. Query confirmation is skipped: the generated queries
// run as proposed.
func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Run one research question and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, store, err := buildStack(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			question := strings.Join(args, " ")
			queryCount, maxLoops := transport.EffortParams(flagEffort)
			model := cfg.LLM.ReasoningModel
			if flagModel != "" {
				model = flagModel
			}

			zlog.Info("starting research",
				zap.String("question", question),
				zap.String("effort", flagEffort),
				zap.Int("queries", queryCount),
				zap.Int("loops", maxLoops))

			engine.Submit(transport.Request{
				Generation:        1,
				Messages:          []transport.Message{{ID: "q", Type: transport.RoleHuman, Content: question}},
				InitialQueryCount: queryCount,
				MaxResearchLoops:  maxLoops,
				ReasoningModel:    model,
			})

			for {
				select {
				case ev := <-engine.Events():
					if stage, ok := firstKey(ev.Payload); ok {
						zlog.Info("pipeline stage", zap.String("stage", stage))
					}
					if _, done := ev.Payload["finalize_answer"]; done {
						if answer, ok := transport.LastAIMessage(engine.Messages()); ok {
							fmt.Println(answer.Content)
						}
						return nil
					}
				case serr := <-engine.Errors():
					return serr.Err
				case <-cmd.Context().Done():
					engine.Stop()
					return cmd.Context().Err()
				}
			}
		},
	}
	cmd.Flags().StringVar(&flagModel, "model", "", "override the reasoning model")
	return cmd
}

// sessionsCmd lists persisted conversations.
func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.OpenSQLite(filepath.Join(cfg.StateDir, "deepscout.db"))
			if err != nil {
				return err
			}
			defer store.Close()

			manager := session.NewManager(store)
			manager.Load()
			convs := manager.Conversations()
			if len(convs) == 0 {
				fmt.Println("No saved conversations.")
				return nil
			}
			for _, c := range convs {
				fmt.Printf("%s  %s  (%d messages, updated %s)\n",
					c.ID, c.Title, len(c.Messages), c.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

// exportCmd renders a saved conversation's latest answer to a file.
func exportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export [conversation-id]",
		Short: "Export a conversation's latest report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.OpenSQLite(filepath.Join(cfg.StateDir, "deepscout.db"))
			if err != nil {
				return err
			}
			defer store.Close()

			manager := session.NewManager(store)
			manager.Load()
			conv, ok := manager.Activate(args[0])
			if !ok {
				return fmt.Errorf("no conversation %s", args[0])
			}

			opts := export.FromMessages(conv.Messages)
			opts.Format = format
			art, err := export.Render(opts)
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = art.Filename
			}
			if err := os.WriteFile(path, art.Data, 0o644); err != nil {
				return err
			}
			fmt.Println("Exported", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", export.FormatMarkdown, "markdown, html, or json")
	cmd.Flags().StringVar(&output, "output", "", "output path (defaults to a generated filename)")
	return cmd
}

func firstKey(payload map[string]any) (string, bool) {
	for k := range payload {
		return k, true
	}
	return "", false
}
