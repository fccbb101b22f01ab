package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eringen/lilac"
	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

func openApp(ctx context.Context) (*lilac.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = "warn"
	app := lilac.New(cfg)
	if err := app.OpenStorage(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// importPosts creates a post for every .mdx or .md file in dir. Posts whose
// id already exists are skipped.
func importPosts(ctx context.Context, repo storage.Repository, dir string) (created, skipped int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".mdx" && ext != ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return created, skipped, err
		}
		p, err := content.ParseMDX(data, strings.TrimSuffix(e.Name(), ext))
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", e.Name(), err)
			skipped++
			continue
		}
		p.Content = content.SanitizeContent(p.Content)
		if _, err := repo.Create(ctx, p); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				skipped++
				continue
			}
			return created, skipped, fmt.Errorf("%s: %w", e.Name(), err)
		}
		created++
	}
	return created, skipped, nil
}

// exportPosts writes every post in repo to dir as <id>.mdx.
func exportPosts(ctx context.Context, repo storage.Repository, dir string) (int, error) {
	page, err := repo.List(ctx, storage.Query{})
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	for _, p := range page.Posts {
		data, err := content.FormatMDX(p)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", p.ID, err)
		}
		if err := os.WriteFile(filepath.Join(dir, p.ID+".mdx"), data, 0o644); err != nil {
			return 0, err
		}
	}
	return len(page.Posts), nil
}

func runImport(dir string) error {
	ctx := context.Background()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	created, skipped, err := importPosts(ctx, app.Posts, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d posts (%d skipped) into %s\n", created, skipped, app.Config.Backend)
	return nil
}

func runExport(dir string) error {
	ctx := context.Background()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := exportPosts(ctx, app.Posts, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d posts to %s\n", n, dir)
	return nil
}
