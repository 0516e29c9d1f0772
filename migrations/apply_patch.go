package main

import (
	"fmt"
	"os"

	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// One-off patch applier. Pass the migration file to run:
//
//	go run ./migrations migrations/001_init.sql
func main() {
	_ = godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Printf("Failed to connect to DB: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	path := "migrations/001_init.sql"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	sqlFile, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read sql file: %v\n", err)
		os.Exit(1)
	}

	_, err = pool.Exec(ctx, string(sqlFile))
	if err != nil {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Migration successful.")
}
