package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/grexie/confidential-defi/pkg/storage/file"
	"github.com/grexie/confidential-defi/pkg/storage/interfaces"
	"github.com/grexie/confidential-defi/pkg/storage/memory"
	"github.com/grexie/confidential-defi/pkg/storage/mongo"
)

type Options struct {
	Backend        string
	MongoURL       string
	DeploymentsDir string
}

func NewStorage(ctx context.Context, opts Options) (interfaces.IStorageBackend, error) {
	backend := strings.TrimSpace(opts.Backend)
	if backend == "" {
		return nil, fmt.Errorf("storage backend not configured, set STORAGE_BACKEND to one of file, mongo or memory")
	}

	switch backend {
	case "file":
		return file.NewFileStorageBackend(opts.DeploymentsDir)
	case "mongo":
		return mongo.NewMongoStorageBackend(ctx, opts.MongoURL)
	case "memory":
		return memory.NewMemoryStorageBackend(), nil
	default:
		return nil, fmt.Errorf("invalid storage backend: %s, set STORAGE_BACKEND to one of file, mongo or memory", backend)
	}
}
