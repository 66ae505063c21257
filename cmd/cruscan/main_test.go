package main

import (
	"strings"
	"testing"

	"github.com/alice-daq/cruscan/internal/pipeline"
)

func TestRunRejectsMissingSubcommand(t *testing.T) {
	stdout := &strings.Builder{}
	stderr := &strings.Builder{}

	code := run(nil, stdout, stderr)
	if code != int(pipeline.ExitStartupError) {
		t.Fatalf("expected exit %d, got %d", pipeline.ExitStartupError, code)
	}
	if !strings.Contains(stderr.String(), "config:") {
		t.Fatalf("expected config error on stderr, got %q", stderr.String())
	}
}

func TestRunRejectsMissingInputFile(t *testing.T) {
	stdout := &strings.Builder{}
	stderr := &strings.Builder{}

	code := run([]string{"check", "sanity", "/nonexistent/cruscan-test-input.raw"}, stdout, stderr)
	if code != int(pipeline.ExitStartupError) {
		t.Fatalf("expected exit %d for missing input file, got %d", pipeline.ExitStartupError, code)
	}
}
