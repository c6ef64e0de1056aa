package enclave

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"enclave/frontend/jsfront"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enclave.toml")
	content := `timeout_ms = 250
max_diagnostics = 8

[compiler]
target = "es2020"
strict = true

[messages]
1005 = "Check the syntax near the marked position."
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.TimeoutMs != 250 || cfg.MaxDiagnostics != 8 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Compiler.Target != "es2020" || !cfg.Compiler.Strict {
		t.Fatalf("compiler cfg = %+v", cfg.Compiler)
	}
	if cfg.Messages["1005"] == "" {
		t.Fatalf("messages not loaded: %+v", cfg.Messages)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestWithConfigAppliesMessageOverride(t *testing.T) {
	cfg := &Config{
		TimeoutMs: 250,
		Messages:  map[string]string{"1005": "Check the syntax near the marked position."},
	}
	p := New(jsfront.New(), WithConfig(cfg))
	if p.defaultTimeout != 250*time.Millisecond {
		t.Fatalf("defaultTimeout = %v", p.defaultTimeout)
	}

	res, err := p.Preprocess(context.Background(),
		"export default function broken() {\n    return (;\n}\n")
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if res.IsOk() {
		t.Fatal("expected a syntax failure")
	}
	if got := res.Errors()[0].Message(); got != "Check the syntax near the marked position." {
		t.Fatalf("message = %q, want the configured override", got)
	}
}
