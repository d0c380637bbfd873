package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/adtrack/adtrack/pkg/config"
	"github.com/adtrack/adtrack/pkg/stores"
)

// openArchive opens the SQLite archive for offline inspection. The caller
// must Close the returned archive.
func openArchive(ctx context.Context, archivePath string) (*stores.SQLiteArchive, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	path := cfg.Archive.Path
	if archivePath != "" {
		path = archivePath
	}

	arch, err := stores.NewSQLiteArchive(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := arch.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	if err := arch.Migrate(ctx); err != nil {
		_ = arch.Close()
		return nil, err
	}
	return arch, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
