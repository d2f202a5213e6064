package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"media-curator/internal/logging"
)

func TestRootCommandVersion(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "mediaindex ") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestIndexCommandRequiresDirectory(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"index"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected an argument error")
	}
}

func TestIndexCommandFlags(t *testing.T) {
	cmd := newIndexCmd()

	for _, name := range []string{
		"volume-uuid", "mount-point", "cache-dir", "db", "media-types",
		"exclude", "batch-size", "batch-delay", "json",
	} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing --%s flag", name)
		}
	}
}

func TestVerboseSetsDebugLevel(t *testing.T) {
	defer logging.SetLevel(logging.GetLevel())

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	root.SetArgs([]string{"--verbose", "index", t.TempDir(), "--media-types", missing})
	_ = root.Execute()

	if logging.GetLevel() != logging.LevelDebug {
		t.Errorf("level = %v, want debug", logging.GetLevel())
	}
}
