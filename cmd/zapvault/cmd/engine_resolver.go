package cmd

import (
	"fmt"
	"time"

	"github.com/zapvault/zapvault/internal/query"
	"github.com/zapvault/zapvault/internal/remote"
)

// IsRemoteMode returns true if commands should query a remote server.
// Resolution order:
//  1. --local flag → always local
//  2. [remote].url set in config → use remote
//  3. Default → use the local backup file
func IsRemoteMode() bool {
	if useLocal {
		return false
	}
	return cfg != nil && cfg.Remote.URL != ""
}

// OpenEngine returns either a local or remote query engine based on
// configuration. The caller owns the engine and must Close it.
func OpenEngine() (query.Engine, error) {
	if IsRemoteMode() {
		return openRemoteEngine()
	}
	return openLocalEngine()
}

// openLocalEngine opens the backup database read-only.
func openLocalEngine() (*query.SQLiteEngine, error) {
	engine, err := query.Open(cfg.Data.BackupDB)
	if err != nil {
		return nil, fmt.Errorf("open backup %s: %w", cfg.Data.BackupDB, err)
	}
	return engine, nil
}

// openRemoteEngine creates a client for a zapvault server.
func openRemoteEngine() (*remote.Engine, error) {
	return remote.New(remote.Config{
		URL:           cfg.Remote.URL,
		APIKey:        cfg.Remote.APIKey,
		AllowInsecure: cfg.Remote.AllowInsecure,
		Timeout:       30 * time.Second,
	})
}

// MustBeLocal returns an error if remote mode is active.
// Use this for commands that only work with the local backup file.
func MustBeLocal(cmdName string) error {
	if IsRemoteMode() {
		return fmt.Errorf("%s requires the local backup file\n\n"+
			"This command cannot run against a remote server.\n"+
			"Use --local to force the local backup.", cmdName)
	}
	return nil
}
