// Command admin runs one-off maintenance tasks against the configured database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"gorm.io/gorm"
	"newbusiness/cleanup"
	"newbusiness/config"
	"newbusiness/importer"
	"newbusiness/models"
	"newbusiness/syncer"
	"newbusiness/utils"
	"newbusiness/webhook"
)

const usage = `usage: admin <command> [flags]

commands:
  initial-sync         pull every collection from Agency CRM and TV Planner
  cleanup-duplicates   merge advertisers sharing a name key (-dry-run to preview)
  setup-webhook        subscribe the Agency CRM webhook URL to contact.updated
  sweep                reclassify non-qualified advertisers
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		log.Printf("%s failed: %v", os.Args[1], err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "report what cleanup-duplicates would do without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch command {
	case "initial-sync", "cleanup-duplicates", "setup-webhook", "sweep":
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := utils.InitLogging(cfg.Environment, cfg.SentryDSN); err != nil {
		log.Printf("Sentry disabled: %v", err)
	}
	defer sentry.Flush(2 * time.Second)

	db, err := config.ConnectDB(cfg)
	if err != nil {
		return err
	}
	systemUser, err := models.EnsureSystemUser(db, cfg.SystemPassword)
	if err != nil {
		return err
	}

	switch command {
	case "initial-sync":
		return initialSync(ctx, db, cfg, systemUser.ID, out)
	case "cleanup-duplicates":
		result, err := cleanup.NewCleaner(db).Run(ctx, *dryRun)
		if err != nil {
			return err
		}
		return printJSON(out, result)
	case "setup-webhook":
		hook, created, err := webhook.SetupBidirectional(ctx, db, cfg.Source(models.SourceAgencyCRM).WebhookURL)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(out, "created webhook %d for %s\nsecret: %s\n", hook.ID, hook.URL, hook.Secret)
		} else {
			fmt.Fprintf(out, "webhook %d for %s already configured\n", hook.ID, hook.URL)
		}
		return nil
	default:
		updated, err := importer.NewImporter(db, systemUser.ID).SweepLeadStatuses(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "updated %d lead statuses\n", updated)
		return nil
	}
}

// initialSync pulls both sources; a source without credentials is reported
// and skipped.
func initialSync(ctx context.Context, db *gorm.DB, cfg *config.Config, systemUserID uint, out io.Writer) error {
	orchestrator, err := syncer.NewOrchestrator(db, syncer.Config{
		Sources:         cfg.Integrations,
		SystemUserID:    systemUserID,
		UpstreamTimeout: cfg.UpstreamTimeout,
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, src := range models.Sources {
		run, err := orchestrator.Run(ctx, src, syncer.RunOptions{
			Trigger: syncer.TriggerInitial,
			Progress: func(p syncer.Progress) {
				fmt.Fprintf(out, "%s %s: %s (fetched %d, failed %d)\n", src, p.Collection, p.Stage, p.Stats.Fetched, p.Stats.Failed)
			},
		})
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", src.Label(), err)
			failed++
			continue
		}
		if err := printJSON(out, run); err != nil {
			return err
		}
		if run.Status == models.SyncFailed {
			failed++
		}
	}
	if failed == len(models.Sources) {
		return fmt.Errorf("no source could be synced")
	}
	return nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
