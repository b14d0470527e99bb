// Command rules-import loads an organization's assignment rules from a YAML
// file. With -replace the existing rules are removed in the same transaction.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"travel_crm_backend/internal/identity"
	"travel_crm_backend/internal/rules"
	"travel_crm_backend/internal/rules/ruleset"
	"travel_crm_backend/platform/config"
	"travel_crm_backend/platform/db"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/validator"

	"github.com/google/uuid"
)

func main() {
	orgFlag := flag.String("org", "", "organization id")
	fileFlag := flag.String("file", "", "path to the rules YAML file")
	replace := flag.Bool("replace", false, "delete the organization's current rules first")
	flag.Parse()

	orgID, err := uuid.Parse(*orgFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "-org must be a valid uuid")
		os.Exit(2)
	}
	if *fileFlag == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting rules import", "organizationId", orgID, "file", *fileFlag, "replace", *replace)

	f, err := os.Open(*fileFlag)
	if err != nil {
		log.Error("failed to open rules file", "error", err)
		os.Exit(1)
	}
	inputs, err := ruleset.Parse(f)
	_ = f.Close()
	if err != nil {
		log.Error("invalid rules file", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	val := validator.New()
	identityModule := identity.NewModule(pool, val)
	rulesModule := rules.NewModule(pool, identityModule.Service(), val)

	created, err := rulesModule.Service().Import(ctx, orgID, inputs, *replace)
	if err != nil {
		log.Error("rules import failed", "error", err)
		os.Exit(1)
	}
	for _, r := range created {
		log.Info("rule stored", "id", r.ID, "type", r.Type, "condition", r.Condition, "priority", r.Priority, "active", r.Active)
	}
	log.Info("rules import complete", "rules", len(created))
}
