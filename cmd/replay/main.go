// Command replay re-runs a recorded event fixture through a sandboxed engine
// and compares the produced decisions against the fixture's expectations.
// Exit code 1 signals divergence.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	verbose := flag.Bool("v", false, "print every decision, not just divergences")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [-v]")
		os.Exit(2)
	}
	os.Exit(run(*fixturePath, *verbose))
}

func run(fixturePath string, verbose bool) int {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	if f.Description != "" {
		fmt.Printf("# %s\n", f.Description)
	}

	sb, err := replay.NewSandbox(f.RewardProfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build sandbox: %v\n", err)
		return 2
	}
	defer sb.Close()

	results := replay.Replay(context.Background(), sb.Engine, f.Events)
	if verbose {
		printDecisions(results)
	}

	summary := replay.Summarize(results)
	fmt.Printf("\nReplayed %d events for %d users: %d degraded\n",
		summary.TotalEvents, summary.Users, summary.Degraded)
	for phase, n := range summary.Phases {
		fmt.Printf("  phase %-10s %d\n", phase, n)
	}
	for reason, n := range summary.Reasons {
		fmt.Printf("  reason %-12s %d\n", reason, n)
	}

	mismatches := replay.Compare(results, f.Expected)
	if len(mismatches) == 0 {
		fmt.Printf("\n%d expectations satisfied\n", len(f.Expected))
		return 0
	}

	fmt.Printf("\n%d of %d expectations diverged:\n", len(mismatches), len(f.Expected))
	for _, m := range mismatches {
		fmt.Printf("  %-16s %-10s want=%-10s got=%s\n", m.EventID, m.Field, m.Want, m.Got)
	}
	return 1
}

// #endregion main

// #region output

func printDecisions(results []replay.Result) {
	fmt.Printf("%-16s %-10s %-10s %-6s %-5s %s\n",
		"Event", "User", "Phase", "Diff", "Batch", "Status")
	for _, r := range results {
		d := r.Decision
		status := "ok"
		if d.Degraded {
			status = "degraded:" + d.Reason
		}
		fmt.Printf("%-16s %-10s %-10s %-6s %-5d %s\n",
			d.EventID, r.UserID, d.Phase, d.Action.Difficulty, d.Action.BatchSize, status)
	}
}

// #endregion output
