// Command datachat is a CLI front end for the data chat engine: upload
// tabular files, manage datasets, and ask questions answered by the
// agentic loop.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"datachat/agent"
	"datachat/config"
	"datachat/database"
	"datachat/ingest"
)

// streamFrame mirrors the chat streaming surface: reasoning frames while
// the run is in flight, one response frame at the end.
type streamFrame struct {
	Type    string `json:"type"` // "reasoning" or "response"
	Content string `json:"content"`
}

func main() {
	var (
		cfgPath string
		dataDir string
	)

	var cfg *config.Config
	var logger *zap.Logger
	var store *database.Store

	root := &cobra.Command{
		Use:   "datachat",
		Short: "Chat with your tabular data",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}

			zapCfg := zap.NewProductionConfig()
			zapCfg.OutputPaths = []string{"stderr"}
			logger, err = zapCfg.Build()
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}

			store, err = database.Open(cfg.DataDir, logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if store != nil {
				store.Close()
			}
			if logger != nil {
				logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "directory containing datachat.yaml")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the data directory")

	root.AddCommand(
		&cobra.Command{
			Use:   "upload <file>",
			Short: "Ingest a csv, xlsx or xls file as a new dataset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				buf, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				importer := ingest.NewImporter(store, cfg, logger)
				result, err := importer.Ingest(buf, args[0])
				if err != nil {
					return err
				}
				out, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(out))
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List datasets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				datasets, err := store.ListDatasets()
				if err != nil {
					return err
				}
				for _, ds := range datasets {
					fmt.Printf("%s  %-30s  %d rows  %d cols\n", ds.ID, ds.Name(), ds.RowCount, ds.ColumnCount)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <dataset-id> <name>",
			Short: "Set a dataset's display name",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return store.UpdateDisplayName(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "delete <dataset-id>",
			Short: "Delete a dataset, its table and its history",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return store.DeleteDataset(args[0])
			},
		},
		newAskCommand(&cfg, &logger, &store),
		newHistoryCommand(&store),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newAskCommand(cfg **config.Config, logger **zap.Logger, store **database.Store) *cobra.Command {
	var noStream bool
	cmd := &cobra.Command{
		Use:   "ask <dataset-id> <question>",
		Short: "Ask a question about a dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if c.LLM.APIKey == "" {
				return fmt.Errorf("no API key configured; set DATACHAT_LLM_API_KEY")
			}

			ctx := context.Background()
			chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
				APIKey:  c.LLM.APIKey,
				BaseURL: c.LLM.BaseURL,
				Model:   c.LLM.Model,
			})
			if err != nil {
				return fmt.Errorf("creating chat model: %w", err)
			}

			orch := agent.NewOrchestrator(chatModel, *store, c, *logger)

			enc := json.NewEncoder(os.Stderr)
			var onProgress agent.ProgressFunc
			if !noStream {
				onProgress = func(message string) {
					enc.Encode(streamFrame{Type: "reasoning", Content: message})
				}
			}

			result, err := orch.Run(ctx, args[0], args[1], onProgress)
			if err != nil {
				return err
			}

			if noStream {
				out, _ := json.MarshalIndent(map[string]string{"response": result.Answer}, "", "  ")
				fmt.Println(string(out))
				return nil
			}
			return json.NewEncoder(os.Stdout).Encode(streamFrame{Type: "response", Content: result.Answer})
		},
	}
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "print a single response object instead of frames")
	return cmd
}

func newHistoryCommand(store **database.Store) *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "history <dataset-id>",
		Short: "Show conversation history for a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := (*store).PageTurns(args[0], page, pageSize)
			if err != nil {
				return err
			}
			for _, turn := range result.Items {
				fmt.Printf("[%s] Q: %s\nA: %s\n\n", strconv.FormatInt(turn.ID, 10), turn.UserText, turn.AgentText)
			}
			fmt.Printf("page %d (%d total turns, more: %v)\n", page, result.TotalCount, result.HasMore)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number, newest first")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "turns per page")
	return cmd
}
