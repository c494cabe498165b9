package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rsbst23/groundup/pkg/cli"
	"github.com/rsbst23/groundup/pkg/config"
	"github.com/rsbst23/groundup/pkg/tenancy"
)

func main() {
	envFile := flag.String("env-file", "", "Load GROUNDUP_* variables from a dotenv file")

	// Parse flags
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{Out: os.Stdout, Connect: cli.EnvConnector()}
	auth := config.LoadAuthConfig()
	app.TokenTTL = auth.TokenTTL
	if auth.JWTSecret != "" {
		issuer, err := tenancy.NewJWTAuthenticator([]byte(auth.JWTSecret), auth.JWTIssuer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		app.Tokens = issuer
	}

	// Create root command
	rootCmd := cli.NewRootCommand(app)

	// Execute command
	err := rootCmd.Execute(ctx, os.Stdout, flag.Args())
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, cli.ErrDenied):
		stop()
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
