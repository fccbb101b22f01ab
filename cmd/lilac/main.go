package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eringen/lilac"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe()
	case "import":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: lilac import <dir>")
			os.Exit(1)
		}
		err = runImport(os.Args[2])
	case "export":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: lilac export <dir>")
			os.Exit(1)
		}
		err = runExport(os.Args[2])
	case "hash-password":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: lilac hash-password <password>")
			os.Exit(1)
		}
		var hash string
		if hash, err = lilac.HashPassword(os.Args[2]); err == nil {
			fmt.Println(hash)
		}
	case "version":
		fmt.Printf("lilac %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads .env when present, then the environment.
func loadConfig() (lilac.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return lilac.Config{}, fmt.Errorf("load .env: %w", err)
	}
	return lilac.ConfigFromEnv(), nil
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := lilac.New(cfg)
	if err := app.Setup(ctx); err != nil {
		app.Close()
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		app.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app.Echo.Logger.Info("lilac: shutting down")
	return app.Shutdown(shutdownCtx)
}

func printUsage() {
	fmt.Println(`lilac - A blog content API built with Go and Echo

Usage:
  lilac <command> [arguments]

Commands:
  serve                  Start the HTTP server
  import <dir>           Load .mdx/.md posts from dir into the configured backend
  export <dir>           Write every post of the configured backend to dir as .mdx
  hash-password <pw>     Print a bcrypt hash for ADMIN_PASSWORD_HASH
  version                Print the lilac version
  help                   Show this help message

Configuration is read from the environment and an optional .env file.

Examples:
  lilac hash-password 'correct horse'
  LILAC_BACKEND=sqlite lilac import content/posts
  lilac serve`)
}
