package config

import (
	"path/filepath"
	"testing"

	"github.com/zapvault/zapvault/internal/page"
	"github.com/zapvault/zapvault/internal/testutil"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()

	cfg, err := Load("", home)
	testutil.MustNoErr(t, err, "Load without config file")

	if cfg.Data.BackupDB != filepath.Join(home, "whatsapp_chats.db") {
		t.Errorf("BackupDB = %q", cfg.Data.BackupDB)
	}
	if cfg.Data.MediaDir != filepath.Join(home, "anexos") {
		t.Errorf("MediaDir = %q", cfg.Data.MediaDir)
	}
	if cfg.Viewer.BatchSize != page.DefaultBatch {
		t.Errorf("BatchSize = %d, want %d", cfg.Viewer.BatchSize, page.DefaultBatch)
	}
	if cfg.Server.Port != 8471 || cfg.Server.BindAddr != "127.0.0.1" {
		t.Errorf("server defaults = %s:%d", cfg.Server.BindAddr, cfg.Server.Port)
	}
	if cfg.Remote.URL != "" {
		t.Errorf("Remote.URL = %q, want empty", cfg.Remote.URL)
	}
}

func TestLoadFromFile(t *testing.T) {
	home := t.TempDir()
	path := testutil.WriteFile(t, home, "config.toml", []byte(`
[data]
backup_db = "/backups/chats.db"
media_dir = "/backups/anexos"

[viewer]
batch_size = 100

[server]
port = 9000
api_key = "secret"
cors_origins = ["https://viewer.example"]

[remote]
url = "https://vault.example"
allow_insecure = false
`))

	cfg, err := Load(path, home)
	testutil.MustNoErr(t, err, "Load")

	if cfg.Data.BackupDB != "/backups/chats.db" {
		t.Errorf("BackupDB = %q", cfg.Data.BackupDB)
	}
	if cfg.Viewer.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want 100", cfg.Viewer.BatchSize)
	}
	if cfg.Server.Port != 9000 || cfg.Server.APIKey != "secret" {
		t.Errorf("server = %+v", cfg.Server)
	}
	testutil.AssertStrings(t, cfg.Server.CORSOrigins, "https://viewer.example")
	if cfg.Remote.URL != "https://vault.example" {
		t.Errorf("Remote.URL = %q", cfg.Remote.URL)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	home := t.TempDir()
	path := testutil.WriteFile(t, home, "config.toml", []byte(`
[viewer]
batch_size = -5
`))

	cfg, err := Load(path, home)
	testutil.MustNoErr(t, err, "Load")

	// A nonsense batch size falls back to the default.
	if cfg.Viewer.BatchSize != page.DefaultBatch {
		t.Errorf("BatchSize = %d, want %d", cfg.Viewer.BatchSize, page.DefaultBatch)
	}
	if cfg.Server.Port != 8471 {
		t.Errorf("Port = %d, want default 8471", cfg.Server.Port)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	home := t.TempDir()
	path := testutil.WriteFile(t, home, "config.toml", []byte(`this is not toml = = =`))

	if _, err := Load(path, home); err == nil {
		t.Fatal("Load accepted malformed TOML")
	}
}

func TestDefaultHomeRespectsEnv(t *testing.T) {
	t.Setenv("ZAPVAULT_HOME", "/custom/vault")
	if got := DefaultHome(); got != "/custom/vault" {
		t.Errorf("DefaultHome = %q, want /custom/vault", got)
	}
}
