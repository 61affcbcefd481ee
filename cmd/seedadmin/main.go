package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/dmitrijs2005/boardforge/internal/cryptox"
	"github.com/dmitrijs2005/boardforge/internal/flagx"
	"github.com/dmitrijs2005/boardforge/internal/logging"
	"github.com/dmitrijs2005/boardforge/internal/seedadmin"
	"github.com/dmitrijs2005/boardforge/internal/server"
	"github.com/dmitrijs2005/boardforge/internal/server/config"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/boardforge/internal/server/services"
	"github.com/dmitrijs2005/boardforge/internal/timex"
)

func main() {
	if err := run(); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	var email string
	fs := flag.NewFlagSet("seedadmin", flag.ContinueOnError)
	fs.StringVar(&email, "email", "", "admin email")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-email", "--email"}))

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	rm := repomanager.NewPostgresRepositoryManager()
	db, err := server.OpenDatabase(ctx, cfg.DatabaseDSN, rm)
	if err != nil {
		return err
	}
	defer db.Close()

	clock := timex.SystemClock{}
	authService := services.NewAuthService(db, rm, cryptox.NewPasswordHasher(),
		server.NewTokenIssuer(cfg, clock), clock, logger)

	return seedadmin.Run(ctx, authService, email, os.Stdin, os.Stdout)
}
