// Package main provides the optbench CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/optbench/internal/bench"
	"github.com/born-ml/optbench/internal/config"
	"github.com/born-ml/optbench/internal/optim"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		run(os.Args[2:])
	case "list":
		list()
	case "version":
		fmt.Printf("optbench %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("optbench - compare gradient-based optimizers on synthetic tasks")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  run        Train every configured optimizer and write CSV reports")
	fmt.Println("  list       Show known optimizers and tasks")
	fmt.Println("  version    Show version")
	fmt.Println("")
	fmt.Println("Run 'optbench run -h' for run flags.")
}

func run(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Experiment config YAML (empty = built-in defaults)")
	outDir := fs.String("out", "outputs", "Directory for summary.csv, curves.csv and the resolved config")
	optimizers := fs.String("optimizers", "", "Comma-separated optimizer labels or kinds to run (empty = all)")
	steps := fs.Int("steps", 0, "Override run.max_steps")
	workers := fs.Int("workers", -1, "Override run.workers (0 = one per CPU)")
	quiet := fs.Bool("quiet", false, "Only log final results")
	_ = fs.Parse(args)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *steps > 0 {
		cfg.Run.MaxSteps = *steps
	}
	if *workers >= 0 {
		cfg.Run.Workers = *workers
	}
	if *optimizers != "" {
		if err := cfg.Select(strings.Split(*optimizers, ",")); err != nil {
			log.Fatalf("Failed to select optimizers: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	if *quiet {
		cfg.Run.LogEvery = cfg.Run.MaxSteps + 1
		cfg.Run.EvalEvery = cfg.Run.MaxSteps + 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := bench.Sweep(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	if err := bench.WriteReport(*outDir, results); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	resolved, err := cfg.Marshal()
	if err != nil {
		log.Fatalf("Failed to encode config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(*outDir, "config.yaml"), resolved, 0o644); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}

	printSummary(results)
	fmt.Printf("\nReports written to %s\n", *outDir)
}

func printSummary(results []*bench.Result) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nOPTIMIZER\tTASK\tSTEPS\tFINAL LOSS\tMETRIC\t")
	for _, r := range results {
		note := ""
		if r.Diverged {
			note = " (diverged)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.4f\t%s=%.4f%s\t\n",
			r.Label, r.Task, len(r.Losses), r.Final.Loss, r.Final.MetricName, r.Final.Metric, note)
	}
	_ = tw.Flush()
}

func list() {
	fmt.Println("Optimizers:")
	for _, k := range optim.Kinds() {
		spec, err := optim.DefaultSpec(k)
		if err != nil {
			log.Fatalf("Failed to describe %s: %v", k, err)
		}
		fmt.Printf("  %-13s %+v\n", k, spec)
	}
	fmt.Println("\nTasks:")
	for _, name := range bench.Tasks() {
		fmt.Printf("  %s\n", name)
	}
}
