package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/assistente-financeiro/assistente-financeiro/cmd/assistentectl/cli"
	"github.com/assistente-financeiro/assistente-financeiro/internal/app"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

const usage = `usage: assistentectl <command> [flags]

commands:
  create-user     add an account (-admin for an administrator)
  reset-password  replace the password of an account
  list-users      print the user directory
  purge-guest     drop the guest data of a browser profile
  login           sign in on a CLI profile
  whoami          show who is signed in on a CLI profile
  logout          sign out of a CLI profile
  trigger         enqueue profiles:sweep or partitions:sweep
  queue           show the job queue counters
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "assistentectl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("command required")
	}
	cmd, args := args[0], args[1:]

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	switch cmd {
	case "trigger":
		return trigger(ctx, cfg, args, out)
	case "queue":
		return queue(ctx, cfg, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, closeStore, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeStore()

	services, err := app.NewServices(cfg, logger, store, nil)
	if err != nil {
		return err
	}
	if err := services.Bootstrap(ctx, cfg, logger); err != nil {
		return err
	}
	ops := cli.NewOps(services, out)
	prompt := cli.NewPrompter(out)

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	switch cmd {
	case "create-user":
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "login email")
		admin := fs.Bool("admin", false, "grant the admin role")
		if err := fs.Parse(args); err != nil {
			return err
		}
		password, err := prompt.NewPassword()
		if err != nil {
			return err
		}
		role := users.RoleUser
		if *admin {
			role = users.RoleAdmin
		}
		_, err = ops.CreateUser(ctx, users.CreateInput{Name: *name, Email: *email, Password: password, Role: role})
		return err

	case "reset-password":
		email := fs.String("email", "", "login email")
		if err := fs.Parse(args); err != nil {
			return err
		}
		password, err := prompt.NewPassword()
		if err != nil {
			return err
		}
		return ops.ResetPassword(ctx, *email, password)

	case "list-users":
		return ops.ListUsers(ctx)

	case "purge-guest":
		profile := fs.String("profile", "", "browser profile id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return ops.PurgeGuest(ctx, *profile)

	case "login", "whoami", "logout":
		profile := fs.String("profile", "cli", "CLI profile id")
		email := fs.String("email", "", "login email")
		if err := fs.Parse(args); err != nil {
			return err
		}
		switch cmd {
		case "login":
			password, err := prompt.Password("Password")
			if err != nil {
				return err
			}
			_, err = ops.Login(ctx, *profile, *email, password)
			return err
		case "whoami":
			_, err := ops.WhoAmI(ctx, *profile)
			return err
		default:
			return ops.Logout(ctx, *profile)
		}

	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func trigger(ctx context.Context, cfg *app.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
	fs.SetOutput(out)
	idle := fs.Duration("idle", 0, "idle threshold for profiles:sweep (0 uses the worker default)")
	dryRun := fs.Bool("dry-run", false, "report without deleting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("trigger: job name required")
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer jobsCLI.Close()
	info, err := jobsCLI.Trigger(ctx, fs.Arg(0), cli.TriggerOptions{IdleFor: *idle, DryRun: *dryRun})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	return nil
}

func queue(ctx context.Context, cfg *app.Config, out io.Writer) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer jobsCLI.Close()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	stats, err := jobsCLI.InspectQueue(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: pending=%d active=%d scheduled=%d retry=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return nil
}
