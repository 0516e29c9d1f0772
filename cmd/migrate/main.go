// migrate applies every .sql file under migrations/ in filename order,
// tracking versions and checksums in schema_migrations. Safe to run
// repeatedly; an advisory lock keeps concurrent runs out.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"recon-engine/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

const advisoryLockKey = 9135217

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		log.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&locked); err != nil {
		log.Fatalf("advisory lock: %v", err)
	}
	if !locked {
		log.Fatal("another migrator is currently running")
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			checksum   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	for _, filename := range discover() {
		apply(ctx, pool, filename)
	}
	log.Println("all migrations processed")
}

func discover() []string {
	entries, err := os.ReadDir("migrations")
	if err != nil {
		log.Fatalf("read migrations dir: %v", err)
	}

	seen := make(map[string]bool)
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		v := version(e.Name())
		if seen[v] {
			log.Fatalf("duplicate migration version %s", v)
		}
		seen[v] = true
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files
}

func version(filename string) string {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 {
		log.Fatalf("migration %s does not match NNN_description.sql", filename)
	}
	return parts[0]
}

func apply(ctx context.Context, pool *pgxpool.Pool, filename string) {
	body, err := os.ReadFile(filepath.Join("migrations", filename))
	if err != nil {
		log.Fatalf("read %s: %v", filename, err)
	}
	sum := sha256.Sum256(body)
	checksum := hex.EncodeToString(sum[:])
	v := version(filename)

	var recorded string
	err = pool.QueryRow(ctx, "SELECT checksum FROM schema_migrations WHERE version = $1", v).Scan(&recorded)
	switch {
	case err == nil:
		if recorded != checksum {
			log.Fatalf("%s was modified after being applied (checksum mismatch)", filename)
		}
		log.Printf("skip %s (already applied)", filename)
		return
	case errors.Is(err, pgx.ErrNoRows):
		// not applied yet
	default:
		log.Fatalf("check %s: %v", filename, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("begin %s: %v", filename, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, string(body)); err != nil {
		log.Fatalf("apply %s: %v", filename, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, filename, checksum) VALUES ($1, $2, $3)",
		v, filename, checksum); err != nil {
		log.Fatalf("record %s: %v", filename, err)
	}
	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("commit %s: %v", filename, err)
	}
	log.Printf("applied %s", filename)
}
