// Command lead-import loads a CSV or XLSX file of leads into one organization.
// Every row goes through the same creation path as the API, so assignment
// rules apply.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/adapters"
	"travel_crm_backend/internal/contacts"
	"travel_crm_backend/internal/events"
	historyrepo "travel_crm_backend/internal/history/repository"
	historysvc "travel_crm_backend/internal/history/service"
	"travel_crm_backend/internal/identity"
	"travel_crm_backend/internal/leads"
	"travel_crm_backend/internal/leads/importer"
	"travel_crm_backend/internal/leads/management"
	"travel_crm_backend/internal/rules"
	"travel_crm_backend/platform/apperr"
	"travel_crm_backend/platform/config"
	"travel_crm_backend/platform/db"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/validator"

	"github.com/google/uuid"
)

func main() {
	orgFlag := flag.String("org", "", "organization id")
	branchFlag := flag.String("branch", "", "branch id applied to every row (optional)")
	fileFlag := flag.String("file", "", "path to a .csv or .xlsx file")
	dryRun := flag.Bool("dry-run", false, "parse and validate without storing")
	flag.Parse()

	orgID, err := uuid.Parse(*orgFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "-org must be a valid uuid")
		os.Exit(2)
	}
	var branchID *uuid.UUID
	if *branchFlag != "" {
		id, err := uuid.Parse(*branchFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, "-branch must be a valid uuid")
			os.Exit(2)
		}
		branchID = &id
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
	log.Info("starting lead import", "organizationId", orgID, "file", *fileFlag, "dryRun", *dryRun)

	rows, err := parseFile(*fileFlag, management.CreateLeadInput{OrganizationID: &orgID, BranchID: branchID})
	if err != nil {
		reportParseError(log, err)
		os.Exit(1)
	}
	log.Info("file parsed", "rows", len(rows))
	if *dryRun {
		return
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	val := validator.New()
	bus := events.NewInMemoryBus(log)
	identityModule := identity.NewModule(pool, val)
	users := identityModule.Service()
	rulesModule := rules.NewModule(pool, users, val)
	history := historysvc.New(historyrepo.New(pool), log, nil)
	contactsModule := contacts.NewModule(contacts.Dependencies{
		Pool:        pool,
		History:     adapters.NewContactHistory(history),
		Reader:      adapters.NewContactHistory(history),
		Members:     users,
		Validator:   val,
		PhoneRegion: cfg.GetPhoneDefaultRegion(),
	})
	leadHistory := adapters.NewLeadHistory(history)
	leadsModule := leads.NewModule(leads.Dependencies{
		Pool:            pool,
		Rules:           adapters.NewRuleSource(rulesModule.Service()),
		Contacts:        adapters.NewContactConverter(contactsModule.Service()),
		History:         leadHistory,
		HistoryReader:   leadHistory,
		Users:           users,
		Bus:             bus,
		Log:             log,
		Validator:       val,
		PhoneRegion:     cfg.GetPhoneDefaultRegion(),
		BulkConcurrency: cfg.GetBulkAssignConcurrency(),
	})

	result, err := leadsModule.Service().Import(ctx, access.System(orgID), rows)
	if err != nil {
		log.Error("lead import failed", "error", err)
		os.Exit(1)
	}
	for _, e := range result.Errors {
		log.Warn("row not imported", "row", e.Row, "reason", e.Message)
	}
	log.Info("lead import complete", "imported", result.Imported, "failed", result.Failed)
	if result.Failed > 0 {
		os.Exit(1)
	}
}

func parseFile(path string, base management.CreateLeadInput) ([]management.ImportRow, error) {
	format, err := importer.DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return importer.Parse(format, f, base)
}

func reportParseError(log *logger.Logger, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if details, ok := appErr.Details.(importer.InvalidRowsDetails); ok {
			for _, row := range details.Rows {
				log.Warn("invalid row", "row", row.Row, "reason", row.Reason)
			}
		}
	}
	log.Error("could not read import file", "error", err)
}
