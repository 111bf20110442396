package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zen-systems/quorum/pkg/backend"
	"github.com/zen-systems/quorum/pkg/config"
	"github.com/zen-systems/quorum/pkg/engine"
	"github.com/zen-systems/quorum/pkg/registry"
	"github.com/zen-systems/quorum/pkg/statstore"
)

var (
	configFile string
	debugFlag  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quorum",
		Short: "Adaptive multi-backend answer engine",
		Long: `Quorum sends each request to several generative-text backends,
judges the answers, returns the best one, and keeps learning which
backend suits which kind of question.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to engine config file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(backendsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	var blendFlag bool
	var exhaustiveFlag bool
	var jsonFlag bool
	var priorityFlag []string

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a prompt to the configured backends and print the best answer",
		Long: `Analyzes the prompt, fans it out to the best-suited backends, and
prints the highest-quality answer. Use --blend to combine the top
answers instead of picking one, and --priority to force specific
backends into the round.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]

			eng, err := buildEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			prefs := &engine.Preferences{
				Blend:      blendFlag,
				Exhaustive: exhaustiveFlag,
				Priority:   priorityFlag,
			}

			result, err := eng.Process(context.Background(), prompt, prefs)
			if err != nil {
				return err
			}

			if jsonFlag {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Println(result.Text)
			fmt.Println()
			if result.Degraded() {
				fmt.Println("(degraded answer: no backend produced an acceptable response)")
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tSTATE\tVALID\tQUALITY\tLATENCY")
			for _, s := range result.Scores {
				fmt.Fprintf(w, "%s\t%s\t%v\t%.2f\t%s\n", s.Backend, s.State, s.Valid, s.Quality, s.Latency)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&blendFlag, "blend", false, "blend the top answers into one")
	cmd.Flags().BoolVar(&exhaustiveFlag, "exhaustive", false, "invoke every planned backend")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the full round result as JSON")
	cmd.Flags().StringSliceVar(&priorityFlag, "priority", nil, "backends to always include")

	return cmd
}

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List configured backends and their capability vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(cfg.Engine.Backends))
			for name := range cfg.Engine.Backends {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tPROVIDER\tMODEL\tKEY\tCAPABILITIES")
			for _, name := range names {
				bc := cfg.Engine.Backends[name]
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
					name, bc.Provider, bc.Model, cfg.HasProvider(bc.Provider), formatCaps(bc.Capabilities))
			}
			return w.Flush()
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Dump the persisted live statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			snap, err := store.Load()
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate an engine config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEngineConfig(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("ok: %d backend(s), %d priority entries\n", len(cfg.Backends), len(cfg.Priority))
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadWithEngineFile(configFile)
	}
	return config.Load()
}

func buildEngine() (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	backends := make(map[string]backend.Backend)
	for name, bc := range cfg.Engine.Backends {
		if !cfg.HasProvider(bc.Provider) {
			log.Printf("[quorum] skipping backend %q: no API key for provider %q", name, bc.Provider)
			continue
		}
		b, err := backend.New(name, bc, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create backend %q: %w", name, err)
		}
		backends[name] = b
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	return engine.New(cfg.Engine, backends,
		engine.WithStore(store), engine.WithDebug(debugFlag))
}

func openStore(cfg *config.Config) (statstore.Store, error) {
	path := cfg.Engine.StatsPath

	switch cfg.Engine.StatsStore {
	case "sqlite":
		if path == "" {
			path = cfg.ConfigDir + "/stats.db"
		}
		return statstore.NewSQLiteStore(path)
	default:
		return statstore.NewFileStore(path)
	}
}

func formatCaps(caps map[string]float64) string {
	if len(caps) == 0 {
		return fmt.Sprintf("(default %.1f)", registry.DefaultDimension)
	}

	dims := make([]string, 0, len(caps))
	for dim := range caps {
		dims = append(dims, dim)
	}
	sort.Strings(dims)

	out := ""
	for i, dim := range dims {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%.2f", dim, caps[dim])
	}
	return out
}
