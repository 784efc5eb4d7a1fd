package config

import (
	"os"
	"testing"
	"time"
)

func TestReloaderAppliesChanges(t *testing.T) {
	path := writeFile(t, "config.toml", "[history]\ncheckpoint_threshold = 100\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	r, err := NewReloader(path, cfg)
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	defer r.Close()

	got := make(chan *Config, 4)
	r.Subscribe(func(c *Config) { got <- c })

	if err := os.WriteFile(path, []byte("[history]\ncheckpoint_threshold = 250\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		if c.History.CheckpointThreshold != 250 {
			t.Errorf("reloaded threshold = %d, want 250", c.History.CheckpointThreshold)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
	if r.Current().History.CheckpointThreshold != 250 {
		t.Errorf("Current() threshold = %d, want 250", r.Current().History.CheckpointThreshold)
	}
}

func TestReloaderKeepsConfigOnBadFile(t *testing.T) {
	path := writeFile(t, "config.toml", "[history]\ncheckpoint_threshold = 100\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewReloader(path, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	called := make(chan struct{}, 1)
	r.Subscribe(func(*Config) { called <- struct{}{} })

	if err := os.WriteFile(path, []byte("[history]\ncheckpoint_threshold = 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-called:
		t.Fatal("subscriber called for an invalid file")
	case <-time.After(400 * time.Millisecond):
	}
	if r.Current() != cfg {
		t.Error("Current() changed after a failed reload")
	}
}
