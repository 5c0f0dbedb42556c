package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"studio/internal/adapter/repo"
	"studio/internal/infra"
	"studio/internal/infra/credentials"
)

func main() {
	var (
		keyFlag   string
		clearFlag bool
	)
	flag.StringVar(&keyFlag, "key", "", "Gemini API key to store (falls back to GEMINI_API_KEY)")
	flag.BoolVar(&clearFlag, "clear", false, "remove the stored key so the next generation asks for a new one")
	flag.Parse()

	_ = godotenv.Load()

	key := strings.TrimSpace(keyFlag)
	if key == "" && !clearFlag {
		key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if key == "" && !clearFlag {
		fmt.Fprintln(os.Stderr, "API key is required via -key or GEMINI_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.Component(infra.NewLogger("cli"), "geminikey")
	runner := infra.NewSQLRunner(pool, logger)
	if err := repo.Migrate(ctx, runner); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate schema: %v\n", err)
		os.Exit(1)
	}
	store := credentials.NewStore(runner)

	if clearFlag {
		if err := store.InvalidateGeminiAPIKey(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to clear api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Gemini API key cleared")
		return
	}
	if err := store.SetGeminiAPIKey(ctx, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist api key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Gemini API key stored successfully")
}
