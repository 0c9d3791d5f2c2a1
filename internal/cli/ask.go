package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"docrouter/internal/router"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question over the indexed documents",
		Long: "Runs the full pipeline: query normalization, retrieval, confidence " +
			"routing and answer generation.",
		Args: cobra.MinimumNArgs(1),
		Run:  runAsk,
	}

	cmd.Flags().StringP("session", "s", "default", "Session id for the conversation log")
	cmd.Flags().StringSlice("sources", nil, "Restrict retrieval to these source files")
	cmd.Flags().Float64("threshold", -1, "Override the confidence threshold for this run")
	cmd.Flags().Bool("routing", false, "Print the routing decision")
	cmd.Flags().Bool("suggest", false, "Print follow-up suggestions")

	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	sources, _ := cmd.Flags().GetStringSlice("sources")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	showRouting, _ := cmd.Flags().GetBool("routing")
	showSuggest, _ := cmd.Flags().GetBool("suggest")
	question := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		exitErr("open session store", err)
	}
	defer store.Close()

	eng := buildEngine(cfg, store)

	// Replay the session's recorded turns so conversation memory carries
	// over between invocations.
	if history, err := store.History(cmd.Context(), sessionID, cfg.Memory.MaxHistory); err != nil {
		slog.Warn("session history unavailable, starting fresh", "session", sessionID, "err", err)
	} else {
		eng.Memory().Restore(history)
	}

	if threshold >= 0 {
		if err := eng.Router().SetThreshold(threshold); err != nil {
			exitErr("set threshold", err)
		}
	}

	res, err := eng.Ask(cmd.Context(), sessionID, question, sources)
	if err != nil {
		exitErr("ask", err)
	}

	if showRouting {
		fmt.Println(router.Explain(res.Decision))
		fmt.Println()
	}

	if !res.Decision.CanAnswer {
		fmt.Println(res.Decision.Reasoning)
		return
	}

	fmt.Println(res.Answer)
	if len(res.Sources) > 0 {
		files := make([]string, len(res.Sources))
		for i, s := range res.Sources {
			files[i] = s.File
		}
		fmt.Printf("\n[%s]\n", strings.Join(files, ", "))
	}

	if showSuggest && len(res.Suggestions) > 0 {
		fmt.Println()
		for _, s := range res.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
	}
}
