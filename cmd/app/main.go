package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"recon-engine/internal/ai"
	"recon-engine/internal/app"
	"recon-engine/internal/core"
	"recon-engine/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	tenantID := os.Getenv("RECON_TENANT_ID")
	if tenantID == "" {
		tenantID = "default"
	}

	policy := core.Merge
	if raw := os.Getenv("RECON_RESOLUTION_POLICY"); raw != "" {
		p, ok := core.ParsePolicy(raw)
		if !ok {
			log.Fatalf("Unknown RECON_RESOLUTION_POLICY: %s", raw)
		}
		policy = p
	}

	svc := app.NewReconService(pool, app.Options{Policy: policy})

	if len(os.Args) < 2 {
		log.Fatal("Usage: app <pass|sync|detect|resolve|rollup|alerts|advise>")
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")

	switch os.Args[1] {
	case "pass":
		out.Encode(svc.RunIntegrationPass(ctx, tenantID))

	case "sync":
		report, err := svc.SyncSettled(ctx, tenantID)
		if err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		out.Encode(report)

	case "detect":
		candidates, err := svc.FindConflicts(ctx, tenantID)
		if err != nil {
			log.Fatalf("Detection failed: %v", err)
		}
		out.Encode(candidates)

	case "resolve":
		if len(os.Args) > 2 {
			p, ok := core.ParsePolicy(os.Args[2])
			if !ok {
				log.Fatalf("Unknown policy: %s", os.Args[2])
			}
			policy = p
		}
		result, err := svc.ResolveConflicts(ctx, tenantID, policy)
		if err != nil {
			log.Fatalf("Resolution failed: %v", err)
		}
		out.Encode(result)

	case "rollup":
		summary, err := svc.RecomputeRollups(ctx, tenantID)
		if err != nil {
			log.Fatalf("Rollup failed: %v", err)
		}
		out.Encode(summary)

	case "alerts":
		alerts, err := svc.ScanAlerts(ctx, tenantID)
		if err != nil {
			log.Fatalf("Alert scan failed: %v", err)
		}
		out.Encode(alerts)

	case "advise":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			log.Fatal("OPENAI_API_KEY is not set")
		}
		candidates, err := svc.FindConflicts(ctx, tenantID)
		if err != nil {
			log.Fatalf("Detection failed: %v", err)
		}
		advisor := ai.NewAdvisor(apiKey)
		advice, err := advisor.ReviewConflicts(ctx, candidates)
		if err != nil {
			log.Fatalf("Advisor error: %v", err)
		}
		out.Encode(advice)

	default:
		log.Fatalf("Unknown command: %s", os.Args[1])
	}
}
