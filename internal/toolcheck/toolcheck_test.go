package toolcheck

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCatalog_Resolve(t *testing.T) {
	c := DefaultCatalog()
	cases := map[string]string{
		"node":             "node",
		"node.js":          "node",
		"Node.js v18+":     "node",
		"angular cli":      "ng",
		"Angular CLI 17":   "ng",
		"golang":           "go",
		"maven":            "mvn",
		"some-unknown-cli": "",
	}
	for in, want := range cases {
		if got := c.resolve(in); got != want {
			t.Errorf("resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractVersion(t *testing.T) {
	cases := map[string]string{
		"v20.11.0\n":                  "20.11.0",
		"git version 2.43.0":          "2.43.0",
		"Python 3.12.1":               "3.12.1",
		"\x1b[31mAngular CLI: 17.1.0\x1b[0m": "17.1.0",
		"8.1\n":                       "8.1",
	}
	for in, want := range cases {
		if got := extractVersion(in); got != want {
			t.Errorf("extractVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckVersion_InstalledTool(t *testing.T) {
	// git is present wherever these tests run.
	v := NewVerifier(nil, 5*time.Second, nil)
	s := v.CheckVersion(context.Background(), "git")
	if !s.Installed {
		t.Fatal("git should be reported installed")
	}
	if s.Version == "" {
		t.Error("expected a version string")
	}
}

func TestCheckVersion_AbsentTool(t *testing.T) {
	v := NewVerifier(nil, 5*time.Second, nil)
	s := v.CheckVersion(context.Background(), "definitely-not-a-real-tool-xyz")
	if s.Installed {
		t.Error("nonexistent tool reported installed")
	}
	if s.Name != "definitely-not-a-real-tool-xyz" {
		t.Errorf("name = %q", s.Name)
	}
}

func TestVerifyAll_DedupAndFallback(t *testing.T) {
	v := NewVerifier(nil, 5*time.Second, nil)

	statuses := v.VerifyAll(context.Background(), []string{"git", "git version 2"})
	if len(statuses) != 1 {
		t.Errorf("expected dedup to one status, got %d", len(statuses))
	}

	fallback := v.VerifyAll(context.Background(), nil)
	if len(fallback) != len(DefaultTools) {
		t.Errorf("expected %d fallback probes, got %d", len(DefaultTools), len(fallback))
	}
}

func TestLoadCatalog_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	content := "ruby:\n  command: ruby --version\n  aliases: [rb]\nnode:\n  command: nodejs --version\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c["ruby"].Command != "ruby --version" {
		t.Errorf("ruby entry missing: %+v", c["ruby"])
	}
	if c["node"].Command != "nodejs --version" {
		t.Errorf("node override not applied: %+v", c["node"])
	}
	if _, ok := c["git"]; !ok {
		t.Error("defaults should survive the merge")
	}
}

func TestFormatStatuses(t *testing.T) {
	out := FormatStatuses([]Status{
		{Name: "node", Installed: true, Version: "20.11.0"},
		{Name: "ng", Installed: false},
	})
	want := "- node: 20.11.0\n- ng: not installed\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}
