package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeFile(t, "config.yaml", "database:\n  driver: memory\nfeeds:\n  - url: https://acme.example/rss\n")

	out, err := runCommand(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	if !strings.Contains(out, "1 seeded feed(s)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestValidateCommandRejectsBadCron(t *testing.T) {
	path := writeFile(t, "config.yaml", "scheduler:\n  cronExpression: \"every day\"\n")

	if _, err := runCommand(t, "validate", "-c", path); err == nil {
		t.Fatal("expected cron validation error")
	}
}

func TestSyncCommandPrintsSummary(t *testing.T) {
	path := writeFile(t, "config.yaml", "logging:\n  level: error\ndatabase:\n  driver: memory\n")

	out, err := runCommand(t, "sync", "--config", path)
	if err != nil {
		t.Fatalf("sync returned error: %v", err)
	}

	var summary map[string]any
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("sync output is not json: %q", out)
	}
	if summary["created"] != float64(0) {
		t.Fatalf("unexpected summary %v", summary)
	}
}
