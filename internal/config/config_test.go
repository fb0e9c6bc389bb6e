package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestDefaults(t *testing.T) {
	o := Defaults()
	if o.ChunkSize != 1000 || o.BatchSize != 256 || o.Nevts != -1 {
		t.Errorf("Defaults() = %+v, want chunk_size=1000 batch_size=256 nevts=-1", o)
	}
	if !math.IsNaN(o.NaN) {
		t.Errorf("NaN default = %v, want NaN", o.NaN)
	}
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingest.toml")
	if err := os.WriteFile(path, []byte("batch-size = 64\nverbose = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	o, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if o.BatchSize != 64 {
		t.Errorf("BatchSize = %d, want 64 from toml", o.BatchSize)
	}
	if o.Verbose != 2 {
		t.Errorf("Verbose = %d, want 2 from toml", o.Verbose)
	}
	if o.ChunkSize != 1000 {
		t.Errorf("ChunkSize = %d, want default 1000 unaffected", o.ChunkSize)
	}
}

func TestLoadEnvOverridesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingest.toml")
	if err := os.WriteFile(path, []byte("batch-size = 64\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("INGEST_BATCH_SIZE", "32")

	o, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if o.BatchSize != 32 {
		t.Errorf("BatchSize = %d, want 32 from env override", o.BatchSize)
	}
}

func TestLoadFlagsOverrideEverything(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingest.toml")
	if err := os.WriteFile(path, []byte("batch-size = 64\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INGEST_BATCH_SIZE", "32")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	defaults := Defaults()
	defaults.BindFlags(fs)
	if err := fs.Parse([]string{"--batch-size", "16"}); err != nil {
		t.Fatal(err)
	}

	o, err := Load(path, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if o.BatchSize != 16 {
		t.Errorf("BatchSize = %d, want 16 from flag (highest precedence)", o.BatchSize)
	}
}

func TestValidateRejectsNonPositiveBatchSize(t *testing.T) {
	o := Defaults()
	o.BatchSize = 0
	if err := o.Validate(); err == nil {
		t.Error("expected ConfigError for batch_size <= 0")
	}
}

func TestValidateRejectsZeroNevts(t *testing.T) {
	o := Defaults()
	o.Nevts = 0
	if err := o.Validate(); err == nil {
		t.Error("expected ConfigError for nevts == 0")
	}
}

func TestValidateRejectsRedisStoreWithoutAddrOrKey(t *testing.T) {
	o := Defaults()
	o.SpecsStore = "redis"
	if err := o.Validate(); err == nil {
		t.Error("expected ConfigError for specs-store=redis without redis-addr/redis-key")
	}
}

func TestBindFlagsThreadsIdentifierAndSelectionFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	defaults := Defaults()
	defaults.BindFlags(fs)
	err := fs.Parse([]string{
		"--identifier-key", "run",
		"--identifier-key", "event",
		"--select", "Muon_*",
		"--exclude", "Muon_mass",
		"--nan", "-999",
	})
	if err != nil {
		t.Fatal(err)
	}

	o, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(o.IdentifierKeys) != 2 || o.IdentifierKeys[0] != "run" || o.IdentifierKeys[1] != "event" {
		t.Errorf("IdentifierKeys = %v, want [run event]", o.IdentifierKeys)
	}
	if len(o.SelectedBranches) != 1 || o.SelectedBranches[0] != "Muon_*" {
		t.Errorf("SelectedBranches = %v, want [Muon_*]", o.SelectedBranches)
	}
	if len(o.ExcludeBranches) != 1 || o.ExcludeBranches[0] != "Muon_mass" {
		t.Errorf("ExcludeBranches = %v, want [Muon_mass]", o.ExcludeBranches)
	}
	if o.NaN != -999 {
		t.Errorf("NaN = %v, want -999", o.NaN)
	}
}
