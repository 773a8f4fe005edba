package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("RANSOMWATCH_DATA_DIR", "/var/lib/ransomwatch")
	cfg := DefaultConfig()

	if cfg.Watch.Path != filepath.Join("data", "watch_folder") {
		t.Errorf("unexpected watch path %s", cfg.Watch.Path)
	}
	if cfg.Detector.WindowSeconds != 20 {
		t.Errorf("expected window 20, got %d", cfg.Detector.WindowSeconds)
	}
	if cfg.Detector.MassChangeThreshold != 25 {
		t.Errorf("expected mass threshold 25, got %d", cfg.Detector.MassChangeThreshold)
	}
	if cfg.Detector.ExtensionSpikeThreshold != 10 {
		t.Errorf("expected extension threshold 10, got %d", cfg.Detector.ExtensionSpikeThreshold)
	}
	if cfg.Detector.EntropyAlertThreshold != 7.2 {
		t.Errorf("expected entropy threshold 7.2, got %g", cfg.Detector.EntropyAlertThreshold)
	}
	if cfg.Storage.Path != "/var/lib/ransomwatch/ransomwatch.db" {
		t.Errorf("unexpected storage path %s", cfg.Storage.Path)
	}
	if cfg.State.MaxEvents != 500 || cfg.State.MaxAlerts != 200 {
		t.Errorf("unexpected state limits %d/%d", cfg.State.MaxEvents, cfg.State.MaxAlerts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestDetectorProjection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.WindowSeconds = 30
	cfg.Detector.Cooldown.EntropySpikeSec = 5

	d := cfg.DetectorConfig()
	if d.Window != 30*time.Second {
		t.Errorf("expected 30s window, got %v", d.Window)
	}
	if d.Cooldowns.ExtensionSpike != 30*time.Second {
		t.Errorf("extension cooldown should follow the window, got %v", d.Cooldowns.ExtensionSpike)
	}
	if d.Cooldowns.EntropySpike != 5*time.Second {
		t.Errorf("expected 5s entropy cooldown, got %v", d.Cooldowns.EntropySpike)
	}
	if d.EntropyMemorySize != 10_000 {
		t.Errorf("expected memory size 10000, got %d", d.EntropyMemorySize)
	}

	cfg.Detector.Cooldown.ExtensionSpikeSec = 7
	if got := cfg.DetectorConfig().Cooldowns.ExtensionSpike; got != 7*time.Second {
		t.Errorf("explicit extension cooldown should win, got %v", got)
	}
	cfg.Detector.Cooldown.ExtensionSpikeSec = 0
	if got := cfg.DetectorConfig().Cooldowns.ExtensionSpike; got != 0 {
		t.Errorf("zero cooldown should disable suppression, got %v", got)
	}

	d.EntropyAllowlist[0] = ".changed"
	if cfg.Detector.EntropyExtAllowlist[0] == ".changed" {
		t.Error("projection should not alias the allow-list")
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, "ransomwatch") {
		t.Errorf("config path should contain ransomwatch: %s", path)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Detector.WindowSeconds != 20 {
		t.Errorf("expected defaults, got window %d", cfg.Detector.WindowSeconds)
	}
}

func TestLoadTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[watch]
path = "/srv/share"
exclude_patterns = ["*.tmp"]

[detector]
window_seconds = 10
mass_change_threshold = 40

[detector.cooldown]
extension_spike_sec = 0
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Watch.Path != "/srv/share" {
		t.Errorf("expected /srv/share, got %s", cfg.Watch.Path)
	}
	if len(cfg.Watch.ExcludePatterns) != 1 || cfg.Watch.ExcludePatterns[0] != "*.tmp" {
		t.Errorf("unexpected exclude patterns %v", cfg.Watch.ExcludePatterns)
	}
	if cfg.Detector.WindowSeconds != 10 || cfg.Detector.MassChangeThreshold != 40 {
		t.Errorf("detector section not applied: %+v", cfg.Detector)
	}
	if cfg.Detector.Cooldown.ExtensionSpikeSec != 0 {
		t.Errorf("expected cooldown 0, got %d", cfg.Detector.Cooldown.ExtensionSpikeSec)
	}
	// Untouched fields keep their defaults.
	if cfg.Detector.ExtensionSpikeThreshold != 10 {
		t.Errorf("expected default extension threshold, got %d", cfg.Detector.ExtensionSpikeThreshold)
	}
}

func TestLoadJSONAndYAML(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(jsonPath, []byte(`{"detector": {"extension_spike_threshold": 3}}`), 0600); err != nil {
		t.Fatalf("write json: %v", err)
	}
	cfg, err := Load(jsonPath)
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	if cfg.Detector.ExtensionSpikeThreshold != 3 {
		t.Errorf("expected 3, got %d", cfg.Detector.ExtensionSpikeThreshold)
	}

	yamlPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("logging:\n  level: debug\n"), 0600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	cfg, err = Load(yamlPath)
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("this is not valid toml {{{"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RANSOMWATCH_WATCH_PATH", "/data/in")
	t.Setenv("RANSOMWATCH_WINDOW_SECONDS", "45")
	t.Setenv("RANSOMWATCH_ENTROPY_ALERT_THRESHOLD", "7.5")
	t.Setenv("RANSOMWATCH_ENTROPY_EXT_ALLOWLIST", ".txt, .md")
	t.Setenv("RANSOMWATCH_MASS_CHANGE_THRESHOLD", "not-a-number")
	t.Setenv("RANSOMWATCH_METRICS_ADDR", "0.0.0.0:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Watch.Path != "/data/in" {
		t.Errorf("expected /data/in, got %s", cfg.Watch.Path)
	}
	if cfg.Detector.WindowSeconds != 45 {
		t.Errorf("expected 45, got %d", cfg.Detector.WindowSeconds)
	}
	if cfg.Detector.EntropyAlertThreshold != 7.5 {
		t.Errorf("expected 7.5, got %g", cfg.Detector.EntropyAlertThreshold)
	}
	if got := cfg.Detector.EntropyExtAllowlist; len(got) != 2 || got[1] != ".md" {
		t.Errorf("unexpected allow-list %v", got)
	}
	if cfg.Detector.MassChangeThreshold != 25 {
		t.Errorf("bad number should be ignored, got %d", cfg.Detector.MassChangeThreshold)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "0.0.0.0:9000" {
		t.Errorf("metrics override not applied: %+v", cfg.Metrics)
	}
}

func TestValidateErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Path = ""
	cfg.Detector.WindowSeconds = 0
	cfg.Detector.EntropyAlertThreshold = 9
	cfg.Detector.Cooldown.MassChangeSec = -1
	cfg.Logging.Level = "loud"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = "nope"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("validation errors should match ErrInvalidConfig")
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	want := []string{
		"watch.path",
		"detector.window_seconds",
		"detector.entropy_alert_threshold",
		"detector.cooldown",
		"metrics.addr",
		"logging.level",
	}
	got := verrs.Fields()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected fields %v, got %v", want, got)
	}
}

func TestValidateDisabledSections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Enabled = false
	cfg.Storage.Path = ""
	cfg.State.Enabled = false
	cfg.State.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled sections should not be validated: %v", err)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.Watch.Path = "/home/user/Documents"
	cfg.Detector.EntropyMemorySize = 0

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Watch.Path != cfg.Watch.Path {
		t.Errorf("expected %s, got %s", cfg.Watch.Path, loaded.Watch.Path)
	}
	if loaded.Detector.EntropyMemorySize != 0 {
		t.Errorf("expected unbounded memory, got %d", loaded.Detector.EntropyMemorySize)
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if !created {
		t.Error("expected config to be created")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not written: %v", err)
	}

	_, created, err = LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if created {
		t.Error("existing config should not be recreated")
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.ExcludePatterns = []string{"*.tmp"}
	clone := cfg.Clone()
	clone.Watch.ExcludePatterns[0] = "*.bak"
	clone.Detector.EntropyExtAllowlist[0] = ".bin"

	if cfg.Watch.ExcludePatterns[0] != "*.tmp" {
		t.Error("clone shares exclude patterns")
	}
	if cfg.Detector.EntropyExtAllowlist[0] != ".txt" {
		t.Error("clone shares allow-list")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.Path = filepath.Join(dir, "db", "ransomwatch.db")
	cfg.State.Path = filepath.Join(dir, "state", "state.json")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, sub := range []string{"db", "state"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created", sub)
		}
	}
}
