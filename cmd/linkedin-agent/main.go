// Package main is the entrypoint for the linkedin-agent.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/joblinkhq/linkedin-agent/internal/config"
	"github.com/joblinkhq/linkedin-agent/internal/server"
	"github.com/joblinkhq/linkedin-agent/pkg/entitycache"
	"github.com/joblinkhq/linkedin-agent/pkg/session"
)

const usage = `Usage: linkedin-agent [command]
       linkedin-agent serve              Start the agent (stdio JSON-RPC, optional NATS and HTTP health).
       linkedin-agent sessions list      List usernames with a stored session.
       linkedin-agent sessions clear     Delete all stored sessions.
       linkedin-agent cache prune        Remove stale cached entities.

Commands:
  serve          (default) Start the agent.
  sessions list  List stored session usernames.
  sessions clear Delete every stored session record.
  cache prune    Drop cached profiles, companies and jobs older than 7 days.

Environment: SESSION_DIR, DATA_DIR, REDIS_URL, APPLICATIONS_DATABASE_URL,
WEBDRIVER_URL, AI_PROVIDER, NATS_URL. See README for the full list.
`

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "sessions":
		if len(args) < 2 {
			log.Fatalf("linkedin-agent sessions: require subcommand (list, clear)")
		}
		switch args[1] {
		case "list":
			if err := runSessionsList(); err != nil {
				log.Fatalf("linkedin-agent sessions list: %v", err)
			}
		case "clear":
			if err := runSessionsClear(); err != nil {
				log.Fatalf("linkedin-agent sessions clear: %v", err)
			}
		default:
			log.Fatalf("linkedin-agent sessions: unknown subcommand %q (use list, clear)", args[1])
		}
		return
	case "cache":
		if len(args) < 2 || args[1] != "prune" {
			log.Fatalf("linkedin-agent cache: require subcommand (prune)")
		}
		if err := runCachePrune(); err != nil {
			log.Fatalf("linkedin-agent cache prune: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("linkedin-agent: %v", err)
	}
}

func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	if cfg.RedisURL != "" {
		client, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return session.NewStore(session.StoreTypeRedis, session.WithRedisClient(client))
	}
	return session.NewStore(session.StoreTypeFile, session.WithDir(cfg.SessionDir))
}

func runSessionsList() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	store, err := openSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	usernames, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(usernames) == 0 {
		fmt.Println("No stored sessions.")
		return nil
	}
	for _, username := range usernames {
		fmt.Println(username)
	}
	return nil
}

func runSessionsClear() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	store, err := openSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	usernames, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, username := range usernames {
		if err := store.Delete(ctx, username); err != nil {
			return fmt.Errorf("delete session %q: %w", username, err)
		}
	}
	fmt.Printf("Cleared %d session(s).\n", len(usernames))
	return nil
}

func runCachePrune() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	total := 0
	for _, kind := range []string{"profiles", "companies", "jobs"} {
		cache, err := entitycache.New(filepath.Join(cfg.DataDir, kind))
		if err != nil {
			return fmt.Errorf("open %s cache: %w", kind, err)
		}
		n, err := cache.Prune()
		if err != nil {
			return fmt.Errorf("prune %s cache: %w", kind, err)
		}
		total += n
	}
	fmt.Printf("Pruned %d stale record(s).\n", total)
	return nil
}
