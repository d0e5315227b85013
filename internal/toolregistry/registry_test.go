package toolregistry

import (
	"path/filepath"
	"testing"

	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.json")
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

func TestImportExportRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	original := models.Tool{Name: "echo_tool", Kind: models.LLMInvokable, Enabled: models.EnabledOn}
	if err := r.Import(original); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := r.Disable("echo_tool"); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	exported, err := r.Export("echo_tool")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, ok := r.Get("echo_tool"); ok {
		t.Fatal("expected tool to be absent from the registry after Export")
	}
	if err := r.Import(exported); err != nil {
		t.Fatalf("re-Import: %v", err)
	}
	got, ok := r.Get("echo_tool")
	if !ok {
		t.Fatal("expected tool to exist")
	}
	if got.Enabled != models.EnabledOff {
		t.Fatalf("expected Off after round trip, got %q", got.Enabled)
	}
}

func TestSessionOverrideDoesNotPersist(t *testing.T) {
	r := newTestRegistry(t)
	_ = r.Import(models.Tool{Name: "write_file", Kind: models.LLMInvokable, Enabled: models.EnabledOff})

	if err := r.SetSessionOverride("write_file", models.EnabledOn); err != nil {
		t.Fatalf("SetSessionOverride: %v", err)
	}
	if !r.IsEnabled("write_file") {
		t.Fatal("expected override to enable tool for this session")
	}

	r.ClearSessionOverride("write_file")
	if r.IsEnabled("write_file") {
		t.Fatal("expected override to be cleared, reverting to persisted Off")
	}
}

func TestWhitelistAddRemoveList(t *testing.T) {
	r := newTestRegistry(t)
	_ = r.Import(models.Tool{Name: "read_file", Kind: models.LLMInvokable, Enabled: models.EnabledOn})

	if err := r.WhitelistAdd("read_file", "/tmp/work/*"); err != nil {
		t.Fatalf("WhitelistAdd: %v", err)
	}
	patterns, err := r.WhitelistList("read_file")
	if err != nil || len(patterns) != 1 {
		t.Fatalf("expected one whitelist pattern, got %v err=%v", patterns, err)
	}
	if err := r.WhitelistRemove("read_file", "/tmp/work/*"); err != nil {
		t.Fatalf("WhitelistRemove: %v", err)
	}
	patterns, _ = r.WhitelistList("read_file")
	if len(patterns) != 0 {
		t.Fatalf("expected empty whitelist after remove, got %v", patterns)
	}
}

func TestMatchesPatternWildcards(t *testing.T) {
	cases := []struct {
		pattern, target string
		want            bool
	}{
		{"/tmp/work/*", "/tmp/work/file.txt", true},
		{"/tmp/work/*", "/etc/shadow", false},
		{"*.md", "README.md", true},
		{"/etc/shadow", "/etc/shadow", true},
	}
	for _, c := range cases {
		if got := MatchesPattern(c.pattern, c.target); got != c.want {
			t.Errorf("MatchesPattern(%q, %q) = %v, want %v", c.pattern, c.target, got, c.want)
		}
	}
}
