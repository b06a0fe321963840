package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunInit_CreatesFiles(t *testing.T) {
	tmpDir := t.TempDir()

	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer func() { _ = os.Setenv("HOME", origHome) }()

	initForce = false

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	dir := filepath.Join(tmpDir, ".runguard")

	cfgPath := filepath.Join(dir, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}
	if !strings.Contains(string(data), "allowlist:") {
		t.Error("config.yaml missing allowlist key")
	}

	listPath := filepath.Join(dir, "allowlist.yaml")
	data, err = os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("allowlist.yaml not created: %v", err)
	}
	if !strings.Contains(string(data), "include_defaults: true") {
		t.Error("allowlist.yaml missing include_defaults")
	}
}

func TestRunInit_StarterConfigLoads(t *testing.T) {
	tmpDir := t.TempDir()

	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer func() { _ = os.Setenv("HOME", origHome) }()

	initForce = false

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	hc, err := loadHostConfig(filepath.Join(tmpDir, ".runguard", "config.yaml"))
	if err != nil {
		t.Fatalf("starter config does not load: %v", err)
	}
	if hc.Timeout != "30s" {
		t.Errorf("timeout = %q, want 30s", hc.Timeout)
	}
	if !hc.Redact {
		t.Error("starter config should enable redaction")
	}
	if hc.OutputLimit != 1048576 {
		t.Errorf("output_limit = %d, want 1048576", hc.OutputLimit)
	}
}

func TestRunInit_NoOverwriteWithoutForce(t *testing.T) {
	tmpDir := t.TempDir()

	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer func() { _ = os.Setenv("HOME", origHome) }()

	dir := filepath.Join(tmpDir, ".runguard")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}

	sentinel := "# sentinel content\n"
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}

	initForce = false

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	data, _ := os.ReadFile(cfgPath)
	if string(data) != sentinel {
		t.Error("config.yaml was overwritten without --force")
	}
}

func TestRunInit_ForceOverwrites(t *testing.T) {
	tmpDir := t.TempDir()

	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer func() { _ = os.Setenv("HOME", origHome) }()

	dir := filepath.Join(tmpDir, ".runguard")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}

	sentinel := "# sentinel content\n"
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}

	initForce = true

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	data, _ := os.ReadFile(cfgPath)
	if string(data) == sentinel {
		t.Error("config.yaml was NOT overwritten with --force")
	}
}

func TestWriteIfMissing(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.txt")

	// First write should succeed.
	initForce = false
	wrote, err := writeIfMissing(path, "hello")
	if err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if !wrote {
		t.Error("first write should return true")
	}

	// Second write without force should skip.
	wrote, err = writeIfMissing(path, "world")
	if err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if wrote {
		t.Error("second write should return false without force")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "hello" {
		t.Errorf("content changed without force: %q", string(data))
	}

	// With force, should overwrite.
	initForce = true
	wrote, err = writeIfMissing(path, "world")
	if err != nil {
		t.Fatalf("force write failed: %v", err)
	}
	if !wrote {
		t.Error("force write should return true")
	}
	data, _ = os.ReadFile(path)
	if string(data) != "world" {
		t.Errorf("force write didn't overwrite: %q", string(data))
	}
}

func TestDefaultAllowlistYAML(t *testing.T) {
	content, err := defaultAllowlistYAML()
	if err != nil {
		t.Fatalf("defaultAllowlistYAML failed: %v", err)
	}

	if !strings.HasPrefix(content, "# runguard allow-list") {
		t.Error("missing header comment")
	}
	for _, key := range []string{"allowed:", "include_defaults: true"} {
		if !strings.Contains(content, key) {
			t.Errorf("missing key %q", key)
		}
	}
}
