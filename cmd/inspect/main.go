// Command inspect reads an adaptive decision database and prints per-user
// state, model progress and recent decision traces.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/persist"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to amas.db")
	user := flag.String("user", "", "show one user's state, model and traces")
	last := flag.Int("last", 10, "show N most recent traces (user mode)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of text")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/amas.db [--user id] [--last N] [--json]")
		os.Exit(2)
	}

	store, err := persist.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if *user != "" {
		err = runUserMode(ctx, store, *user, *last, *jsonOut)
	} else {
		err = runListMode(ctx, store, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type userRow struct {
	UserID    string `json:"user_id"`
	UpdatedAt string `json:"updated_at"`
}

func runListMode(ctx context.Context, store *persist.Store, jsonOut bool) error {
	rows, err := store.DB().QueryContext(ctx,
		`SELECT user_id, updated_at FROM user_states ORDER BY updated_at DESC`)
	if err != nil {
		return fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []userRow
	for rows.Next() {
		var r userRow
		if err := rows.Scan(&r.UserID, &r.UpdatedAt); err != nil {
			return fmt.Errorf("scan user: %w", err)
		}
		users = append(users, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(os.Stderr, "no users found")
		return nil
	}

	if jsonOut {
		return printJSON(users)
	}
	fmt.Printf("%-24s %s\n", "User", "Updated")
	for _, r := range users {
		fmt.Printf("%-24s %s\n", r.UserID, r.UpdatedAt)
	}
	return nil
}

// #endregion list-mode

// #region user-mode

type userDetail struct {
	UserID       string                  `json:"user_id"`
	State        any                     `json:"state,omitempty"`
	Phase        string                  `json:"phase,omitempty"`
	UserType     string                  `json:"user_type,omitempty"`
	Interactions int64                   `json:"interactions"`
	Weights      map[string]bool         `json:"learners,omitempty"`
	Traces       []persist.DecisionTrace `json:"traces,omitempty"`
}

func runUserMode(ctx context.Context, store *persist.Store, userID string, last int, jsonOut bool) error {
	out := userDetail{UserID: userID}

	state, found, err := store.LoadState(ctx, userID)
	if err != nil {
		return err
	}
	if found {
		out.State = state
	}

	rec, found, err := store.LoadModel(ctx, userID)
	if err != nil {
		return err
	}
	if found {
		out.Phase = string(rec.ColdStart.Phase)
		out.UserType = string(rec.ColdStart.UserType)
		out.Interactions = rec.InteractionCount
		out.Weights = make(map[string]bool, len(rec.Ensemble.Learners))
		for name := range rec.Ensemble.Learners {
			out.Weights[name] = rec.Ensemble.Weights[name] > 0
		}
	}

	out.Traces, err = store.ListTraces(ctx, userID, last)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("User:         %s\n", out.UserID)
	if out.State == nil && out.Phase == "" {
		fmt.Println("              (no stored state or model)")
	}
	if found {
		fmt.Printf("Phase:        %s\n", out.Phase)
		if out.UserType != "" {
			fmt.Printf("Type:         %s\n", out.UserType)
		}
		fmt.Printf("Interactions: %d\n", out.Interactions)
	}
	if s, ok := out.State.(interface{ String() string }); ok {
		fmt.Printf("State:        %s\n", s.String())
	} else if out.State != nil {
		raw, _ := json.Marshal(out.State)
		fmt.Printf("State:        %s\n", raw)
	}

	if len(out.Traces) > 0 {
		fmt.Printf("\n%-16s %-10s %-6s %-5s %-6s %s\n",
			"Event", "Phase", "Diff", "Batch", "Conf", "Status")
		for _, tr := range out.Traces {
			status := "ok"
			if tr.Degraded {
				status = "degraded:" + tr.Reason
			}
			fmt.Printf("%-16s %-10s %-6s %-5d %-6.2f %s\n",
				tr.EventID, tr.Phase, tr.Action.Difficulty, tr.Action.BatchSize, tr.Confidence, status)
		}
	}
	return nil
}

// #endregion user-mode

// #region output

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output
