package main

import (
	"os"
	"strings"
	"testing"

	"github.com/zulandar/taskyard/internal/config"
)

func TestDBCmd_Help(t *testing.T) {
	out := mustRun(t, "db", "--help")
	if !strings.Contains(out, "Database management") {
		t.Errorf("expected help to mention 'Database management', got: %s", out)
	}
	for _, sub := range []string{"init", "reset"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestDBInitCmd_Help(t *testing.T) {
	out := mustRun(t, "db", "init", "--help")
	if !strings.Contains(out, "--config") {
		t.Errorf("expected help to mention '--config' flag, got: %s", out)
	}
	if !strings.Contains(out, "taskyard.yaml") {
		t.Errorf("expected default config path 'taskyard.yaml', got: %s", out)
	}
}

func TestDBInitCmd_MissingConfig(t *testing.T) {
	_, err := runCmd(t, "db", "init", "--config", "/nonexistent/taskyard.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestDBInitCmd_InvalidConfig(t *testing.T) {
	cfgPath := t.TempDir() + "/taskyard.yaml"
	if err := writeTestFile(cfgPath, "database:\n  driver: postgres\n"); err != nil {
		t.Fatal(err)
	}
	_, err := runCmd(t, "db", "init", "--config", cfgPath)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("error = %q, want validation failure", err.Error())
	}
}

func TestDBInitCmd_SQLite(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out := mustRun(t, "db", "init", "-c", cfgPath)
	for _, want := range []string{"Migrated 7 tables", "Seeded 3 users, 1 teams, 1 memberships, 1 tags", "initialized successfully"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}

	// Running again is safe.
	mustRun(t, "db", "init", "-c", cfgPath)
}

func TestDBResetCmd_RefusesWithoutTerminal(t *testing.T) {
	cfgPath := writeTestConfig(t)
	mustRun(t, "db", "init", "-c", cfgPath)

	_, err := runCmd(t, "db", "reset", "-c", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "without --yes") {
		t.Errorf("err = %v, want refusal", err)
	}
}

func TestDBResetCmd_Yes(t *testing.T) {
	cfgPath := writeTestConfig(t)
	mustRun(t, "db", "init", "-c", cfgPath)
	mustRun(t, "task", "create", "--as", bobID, "-c", cfgPath, "--team", teamID, "--title", "doomed")

	out := mustRun(t, "db", "reset", "-y", "-c", cfgPath)
	if !strings.Contains(out, "Removed") || !strings.Contains(out, "initialized successfully") {
		t.Errorf("reset output = %s", out)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.Database.Path); err != nil {
		t.Errorf("database file missing after reset: %v", err)
	}
	if out := mustRun(t, "task", "list", "--as", bobID, "-c", cfgPath); !strings.Contains(out, "No tasks found") {
		t.Errorf("tasks survived reset: %s", out)
	}
}
