package main

import (
	"strings"
	"testing"
)

func TestRunUnknownCommand(t *testing.T) {
	err := run([]string{"bogus"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRunMissingCommand(t *testing.T) {
	err := run(nil)
	if err == nil || !strings.Contains(err.Error(), "missing command") {
		t.Fatalf("expected missing command error, got %v", err)
	}
}

func TestHelpTopics(t *testing.T) {
	if err := run([]string{"help"}); err != nil {
		t.Fatalf("help: %v", err)
	}
	if err := run([]string{"help", "serve"}); err != nil {
		t.Fatalf("help serve: %v", err)
	}
	if err := run([]string{"help", "bogus"}); err == nil {
		t.Fatalf("expected error for unknown help topic")
	}
}
