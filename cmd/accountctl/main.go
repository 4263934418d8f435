// Command accountctl is a terminal front end for the account API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopfront/accounts/internal/client"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	defaultServer := os.Getenv("ACCOUNTS_API_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080/api/v1"
	}

	fs := flag.NewFlagSet("accountctl", flag.ExitOnError)
	server := fs.String("server", defaultServer, "account API base URL")
	_ = fs.Parse(os.Args[1:])

	store, err := defaultTokenStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	token, err := store.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	api, err := client.New(*server, token)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(api, newPrompter(os.Stdin, os.Stdout), store, os.Stdout)
	if err := a.run(ctx, fs.Args()); err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}
