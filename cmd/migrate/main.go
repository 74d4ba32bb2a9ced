// Command migrate manages the storefront schema.
//
//	migrate up | down | status | to <version> | create <name> | validate
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

const serviceName = "storefront-migrate"

var errUsage = errors.New("usage: migrate [-dir path] up|down|status|to <version>|create <name>|validate")

func main() {
	_ = godotenv.Load()
	dir := flag.String("dir", migrate.SourceDir, "migration source directory for create and validate")
	flag.Parse()

	if err := run(flag.Args(), *dir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, dir string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "create":
		if len(args) < 2 {
			return errUsage
		}
		path, err := migrate.CreateSQLMigration(dir, args[1], time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	}
	return runAgainstDB(args)
}

func runAgainstDB(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.LogConsole,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": args[0]})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, migrate.Migrations())
	if err != nil {
		return err
	}

	switch args[0] {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(ctx, fmt.Sprintf("applied %d migrations", applied))
		return nil
	case "down":
		return runner.Down(ctx)
	case "status":
		return runner.Status(ctx, os.Stdout)
	case "to":
		if len(args) < 2 {
			return errUsage
		}
		version, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("version %q: want YYYYMMDDHHMMSS", args[1])
		}
		return runner.To(ctx, version)
	}
	return errUsage
}
