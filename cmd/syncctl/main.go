package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/application/billing"
	"github.com/eo-nwanze/lavish-sub000/internal/bootstrap"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/auth"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/config"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/scheduler"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/handler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dryRun  bool
		date    string
		subject string
		ttl     time.Duration
	)
	flag.BoolVar(&dryRun, "dry-run", false, "Evaluate billing without charging or writing attempts")
	flag.StringVar(&date, "date", "", "Billing date as YYYY-MM-DD (default today, UTC)")
	flag.StringVar(&subject, "subject", "syncctl", "Token subject for the token command")
	flag.DurationVar(&ttl, "ttl", time.Hour, "Token lifetime for the token command")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		return 1
	}
	command := args[0]

	opts := billing.RunOptions{DryRun: dryRun}
	if date != "" {
		d, err := time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -date %q: expected YYYY-MM-DD\n", date)
			return 1
		}
		opts.Today = d
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	if command == "token" {
		tokens, err := auth.NewTokenService(cfg.JWT)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create token service: %v\n", err)
			return 1
		}
		token, err := tokens.Issue(subject, ttl, auth.RoleOperator)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			return 1
		}
		fmt.Println(token)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	log := app.Logger
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			log.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	var result any
	exclusive := func(name string, fn scheduler.JobFunc) error {
		return app.Scheduler.Exclusive(ctx, name, fn)
	}

	switch command {
	case "billing":
		err = exclusive(scheduler.JobBillingRun, func(ctx context.Context) error {
			summary, err := app.Billing.Run(ctx, opts)
			result = summary
			return err
		})
	case "retry":
		err = exclusive(scheduler.JobRetrySweep, func(ctx context.Context) error {
			summary, err := app.Billing.RetrySweep(ctx, opts)
			result = summary
			return err
		})
	case "push":
		if len(args) == 3 {
			err = pushOne(ctx, app, args[1], args[2], &result)
			break
		}
		err = exclusive(scheduler.JobPushPending, func(ctx context.Context) error {
			resp, err := handler.PushPending(ctx, app.Pusher)
			result = resp
			return err
		})
	case "archive":
		if !cfg.Archive.Enabled {
			fmt.Fprintln(os.Stderr, "Archiving is disabled; set archive.enabled")
			return 1
		}
		err = exclusive(scheduler.JobArchiveLogs, func(ctx context.Context) error {
			res, err := app.Archiver.Archive(ctx)
			result = res
			return err
		})
	case "jobs":
		result = app.Scheduler.Jobs()
	default:
		printUsage()
		return 1
	}

	if result != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			log.Error("Failed to write result", zap.Error(encErr))
		}
	}
	if err != nil {
		log.Error("Command failed", zap.String("command", command), zap.Error(err))
		return 1
	}
	return 0
}

func pushOne(ctx context.Context, app *bootstrap.App, kindArg, idArg string, result *any) error {
	kind, err := shared.ParseEntityKind(kindArg)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(idArg)
	if err != nil {
		return fmt.Errorf("invalid entity id %q: %w", idArg, err)
	}
	ref, err := shared.NewEntityRef(kind, id)
	if err != nil {
		return err
	}
	res, err := app.Pusher.Push(ctx, ref)
	*result = res
	return err
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Subscription sync operator commands

Usage:
  syncctl [flags] <command> [arguments]

Commands:
  billing               Run the billing batch for -date
  retry                 Run the retry sweep for -date
  push                  Push all pending selling plans, then subscriptions
  push <kind> <id>      Push one selling_plan or subscription
  archive               Export finished sync logs past retention
  jobs                  Show registered jobs
  token                 Print an operator bearer token for the HTTP API

Flags:
  -dry-run              Evaluate billing without side effects
  -date string          Billing date YYYY-MM-DD (default today, UTC)
  -subject string       Token subject (default syncctl)
  -ttl duration         Token lifetime (default 1h)

Settings come from config.toml, .env and SUBSYNC_* variables. Runs guard against overlap
only within this process; stop the server's scheduler before running jobs by hand.`)
}
