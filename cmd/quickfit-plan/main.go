package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/claude/quickfit/internal/catalog"
	"github.com/claude/quickfit/internal/generator"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	goal := flag.String("goal", "", "fitness goal (e.g. \"Build Muscle\")")
	equipment := flag.String("equipment", "", "comma-separated equipment list")
	level := flag.String("level", "Intermediate", "Beginner, Intermediate or Advanced")
	strategy := flag.String("strategy", generator.StrategyShuffle, "shuffle, conditional or permissive")
	planCap := flag.Int("cap", generator.DashboardCap, "maximum exercises in the plan")
	seed := flag.Uint64("seed", 0, "shuffle seed; 0 picks a random one")
	catalogPath := flag.String("catalog", "", "catalog YAML file; empty uses the built-in catalog")
	asJSON := flag.Bool("json", false, "print the plan as JSON")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("quickfit-plan", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if *goal == "" {
		fmt.Fprintf(os.Stderr, "Usage: quickfit-plan -goal <goal> [-equipment a,b] [-level L] [-strategy S] [-cap N] [-seed N] [-json]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		log.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}
	if !cat.HasGoal(*goal) {
		log.Warn("unknown goal; the plan will be empty", "goal", *goal, "goals", strings.Join(cat.Goals(), ", "))
	}

	lvl, err := generator.ParseLevel(*level)
	if err != nil {
		log.Error("invalid level", "error", err)
		os.Exit(1)
	}

	opts := generator.Options{Cap: *planCap}
	if *seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(*seed, *seed))
	}
	gen, err := generator.New(*strategy, cat, opts, log)
	if err != nil {
		log.Error("invalid strategy", "error", err)
		os.Exit(1)
	}

	plan := gen.Generate(*goal, splitList(*equipment), lvl)
	if err := printPlan(os.Stdout, plan, *asJSON); err != nil {
		log.Error("failed to print plan", "error", err)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printPlan(w io.Writer, plan []generator.Exercise, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}
	if len(plan) == 0 {
		_, err := fmt.Fprintln(w, "No exercises match this goal and equipment.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXERCISE\tSETS\tREPS")
	for _, e := range plan {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Name, e.Sets, e.Reps)
	}
	return tw.Flush()
}
