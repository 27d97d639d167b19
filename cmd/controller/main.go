// Command controller runs the adaptive decision service over stdin/stdout.
// Each input line is one JSON event envelope; each output line is the JSON
// decision produced for it. Blank lines are skipped, "quit" exits.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/config"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/engine"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/persist"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region envelope

// envelope is one stdin line: the user plus their raw interaction event.
type envelope struct {
	UserID string            `json:"user_id"`
	Event  strategy.RawEvent `json:"event"`
}

// #endregion envelope

// #region main

func main() {
	configPath := flag.String("config", os.Getenv("AMAS_CONFIG"), "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	store, err := persist.NewStore(cfg.DBPath)
	if err != nil {
		logger.Fatal("open store", zap.String("db", cfg.DBPath), zap.Error(err))
	}
	defer store.Close()

	var (
		states persist.StateRepository = store
		models persist.ModelRepository = store
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		states = persist.NewCachedStateRepository(store, rdb, cfg.Redis.TTL.Std())
		models = persist.NewCachedModelRepository(store, rdb, cfg.Redis.TTL.Std())
		logger.Info("redis cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	eng := engine.New(cfg.EngineConfig(), states, models, store, logger)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.StartSweeper(ctx, cfg.Engine.SweepInterval.Std())

	logger.Info("adaptive decision controller ready",
		zap.String("db", cfg.DBPath),
		zap.String("reward_profile", cfg.EngineConfig().RewardProfile))

	if err := serve(ctx, eng, os.Stdin, os.Stdout); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

// #endregion main

// #region serve

// serve pumps event envelopes from in to decisions on out until EOF or "quit".
func serve(ctx context.Context, eng *engine.Engine, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if string(line) == "quit" || string(line) == "exit" {
			break
		}

		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			fmt.Fprintf(os.Stderr, "skipping malformed envelope: %v\n", err)
			continue
		}
		if env.UserID == "" {
			fmt.Fprintln(os.Stderr, "skipping envelope without user_id")
			continue
		}
		if env.Event.EventID == "" {
			env.Event.EventID = uuid.NewString()
		}

		d := eng.ProcessEvent(ctx, env.UserID, env.Event)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("write decision: %w", err)
		}
	}
	return scanner.Err()
}

// #endregion serve
