package lilac

import (
	"context"
	"fmt"

	"github.com/eringen/lilac/storage/filesystem"
	"github.com/eringen/lilac/storage/memory"
	"github.com/eringen/lilac/storage/mongodb"
	"github.com/eringen/lilac/storage/s3store"
	"github.com/eringen/lilac/storage/sqlite"
)

// OpenStorage opens the configured post and image backends unless they were
// injected through options. A MongoDB connection is shared when both use it.
func (a *App) OpenStorage(ctx context.Context) error {
	var mongo *mongodb.Store
	connectMongo := func() (*mongodb.Store, error) {
		if mongo != nil {
			return mongo, nil
		}
		if a.Config.MongoURI == "" {
			return nil, fmt.Errorf("lilac: MONGODB_URI is required for the %s backend", BackendMongoDB)
		}
		s, err := mongodb.Connect(ctx, a.Config.MongoURI, a.Config.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("lilac: connect mongodb: %w", err)
		}
		mongo = s
		a.closers = append(a.closers, s.Close)
		return s, nil
	}

	if a.Posts == nil {
		switch a.Config.Backend {
		case BackendFilesystem:
			repo, err := filesystem.NewRepository(a.Config.ContentDir, a.Config.BackupDir)
			if err != nil {
				return fmt.Errorf("lilac: open content dir: %w", err)
			}
			a.Posts = repo
		case BackendMemory:
			a.Posts = memory.NewRepository()
		case BackendSQLite:
			repo, err := sqlite.Open(a.Config.DatabasePath)
			if err != nil {
				return fmt.Errorf("lilac: open sqlite: %w", err)
			}
			a.Posts = repo
			a.closers = append(a.closers, repo.Close)
		case BackendMongoDB:
			s, err := connectMongo()
			if err != nil {
				return err
			}
			a.Posts = s.Posts()
		default:
			return fmt.Errorf("lilac: unknown backend %q", a.Config.Backend)
		}
	}

	if a.Images == nil {
		switch a.Config.ImageBackend {
		case BackendFilesystem:
			store, err := filesystem.NewImageStore(a.Config.ImageDir)
			if err != nil {
				return fmt.Errorf("lilac: open image dir: %w", err)
			}
			a.Images = store
		case BackendMemory:
			a.Images = memory.NewImageStore()
		case BackendMongoDB:
			s, err := connectMongo()
			if err != nil {
				return err
			}
			a.Images = s.Images()
		case BackendS3:
			store, err := s3store.New(ctx, s3store.Config{
				Bucket:          a.Config.S3Bucket,
				Region:          a.Config.S3Region,
				Endpoint:        a.Config.S3Endpoint,
				AccessKeyID:     a.Config.S3AccessKeyID,
				SecretAccessKey: a.Config.S3SecretAccessKey,
			})
			if err != nil {
				return fmt.Errorf("lilac: open s3: %w", err)
			}
			a.Images = store
		default:
			return fmt.Errorf("lilac: unknown image backend %q", a.Config.ImageBackend)
		}
	}
	return nil
}
