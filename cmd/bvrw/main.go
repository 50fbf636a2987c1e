package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bvrewrite/internal/bvexpr"
	"bvrewrite/internal/dag"
	"bvrewrite/internal/diag"
	"bvrewrite/internal/rewrite"
)

func main() {
	var level int

	rootCmd := &cobra.Command{
		Use:   "bvrw",
		Short: "Bit-vector/array rewrite engine — simplify SMT-LIB-flavored terms",
	}

	simplifyCmd := &cobra.Command{
		Use:   "simplify [file]",
		Short: "Parse and simplify every term in a script, printing the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimplify(args[0], level, false)
		},
	}
	simplifyCmd.Flags().IntVar(&level, "rewrite-level", 3, "Rewrite aggressiveness (1-3)")

	statsCmd := &cobra.Command{
		Use:   "stats [file]",
		Short: "Simplify a script and print rewrite-session statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimplify(args[0], level, true)
		},
	}
	statsCmd.Flags().IntVar(&level, "rewrite-level", 3, "Rewrite aggressiveness (1-3)")

	benchCmd := &cobra.Command{
		Use:   "bench [files...]",
		Short: "Simplify a corpus of scripts and report aggregate DAG size and rule statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(args, level)
		},
	}
	benchCmd.Flags().IntVar(&level, "rewrite-level", 3, "Rewrite aggressiveness (1-3)")

	rootCmd.AddCommand(simplifyCmd, statsCmd, benchCmd)
	if err := rootCmd.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func runSimplify(path string, level int, showStats bool) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	script, err := bvexpr.ParseString(path, string(source))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg := rewrite.DefaultConfig()
	cfg.RewriteLevel = rewrite.Level(level)
	ctx := rewrite.NewContext(dag.NewStore(), cfg)

	builder := bvexpr.NewBuilder(ctx)
	results, err := builder.Run(script)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold).SprintFunc()
	for i, r := range results {
		fmt.Printf("%s %s\n", bold(fmt.Sprintf("[%d]", i)), bvexpr.Sprint(r))
	}

	if showStats {
		fmt.Println()
		fmt.Print(diag.RenderStats(ctx.Stats()))
	}
	return nil
}

// runBench rewrites every script in files against one shared store,
// then reports the resulting DAG size and accumulated rule statistics —
// a per-corpus view rather than runSimplify's per-script printout.
func runBench(files []string, level int) error {
	cfg := rewrite.DefaultConfig()
	cfg.RewriteLevel = rewrite.Level(level)
	store := dag.NewStore()
	ctx := rewrite.NewContext(store, cfg)
	builder := bvexpr.NewBuilder(ctx)

	bold := color.New(color.Bold).SprintFunc()
	total := 0
	for _, path := range files {
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		script, err := bvexpr.ParseString(path, string(source))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		results, err := builder.Run(script)
		if err != nil {
			return fmt.Errorf("simplifying %s: %w", path, err)
		}
		total += len(results)
		fmt.Printf("%s %s (%d terms)\n", bold("[ok]"), path, len(results))
	}

	fmt.Println()
	fmt.Printf("%s %d terms across %d files, %d DAG nodes allocated\n",
		bold("[bench]"), total, len(files), store.NodeCount())
	fmt.Print(diag.RenderStats(ctx.Stats()))
	return nil
}
