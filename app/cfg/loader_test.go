package cfg

import (
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadArgsDefaults(t *testing.T) {
	t.Setenv("TZ", "UTC")

	cfg, err := LoadArgs([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "./newsdesk.db" {
		t.Errorf("Expected default DB path './newsdesk.db', got '%s'", cfg.DBPath)
	}
	if cfg.ClassifyConcurrency != 5 {
		t.Errorf("Expected classify concurrency 5, got %d", cfg.ClassifyConcurrency)
	}
	if cfg.GroupWindow != 2*time.Hour {
		t.Errorf("Expected group window 2h, got %v", cfg.GroupWindow)
	}
	if cfg.HostDelay != time.Second {
		t.Errorf("Expected host delay 1s, got %v", cfg.HostDelay)
	}
	if cfg.AITimeout != 30*time.Second {
		t.Errorf("Expected AI timeout 30s, got %v", cfg.AITimeout)
	}
	if cfg.FetchSchedule != "" || cfg.ClassifySchedule != "" {
		t.Error("Expected cron schedules to be disabled by default")
	}
}

func TestLoadArgsFlagsAndCommand(t *testing.T) {
	t.Setenv("TZ", "UTC")

	cfg, err := LoadArgs([]string{"--classify-concurrency", "3", "--group-window", "90", "run", "classify-news"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ClassifyConcurrency != 3 {
		t.Errorf("Expected classify concurrency 3, got %d", cfg.ClassifyConcurrency)
	}
	if cfg.GroupWindow != 90*time.Minute {
		t.Errorf("Expected group window 90m, got %v", cfg.GroupWindow)
	}
	if len(cfg.Args) != 2 || cfg.Args[0] != "run" || cfg.Args[1] != "classify-news" {
		t.Errorf("Expected remaining args [run classify-news], got %v", cfg.Args)
	}
}

func TestLoadArgsRejectsNonPositiveConcurrency(t *testing.T) {
	t.Setenv("TZ", "UTC")

	if _, err := LoadArgs([]string{"--fetch-concurrency", "0"}); err == nil {
		t.Error("Expected error for zero fetch concurrency")
	}
}
