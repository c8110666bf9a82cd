package cacheinfra

import (
	"sort"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 10000 {
		t.Errorf("expected Capacity to be 10000, got %d", cfg.Capacity)
	}

	if cfg.NumShards != 256 {
		t.Errorf("expected NumShards to be 256, got %d", cfg.NumShards)
	}

	if cfg.TTL != time.Hour {
		t.Errorf("expected TTL to be 1 hour, got %v", cfg.TTL)
	}

	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid default config", mutate: func(*Config) {}},
		{name: "zero capacity", mutate: func(c *Config) { c.Capacity = 0 }, wantField: "Capacity"},
		{name: "negative shards", mutate: func(c *Config) { c.NumShards = -1 }, wantField: "NumShards"},
		{name: "zero ttl", mutate: func(c *Config) { c.TTL = 0 }, wantField: "TTL"},
		{name: "eviction percentage too high", mutate: func(c *Config) { c.EvictionPercentage = 101 }, wantField: "EvictionPercentage"},
		{name: "eviction percentage zero", mutate: func(c *Config) { c.EvictionPercentage = 0 }, wantField: "EvictionPercentage"},
		{name: "negative eviction interval", mutate: func(c *Config) { c.EvictionInterval = -time.Second }, wantField: "EvictionInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			configErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
			}
			if configErr.Field != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, configErr.Field)
			}
		})
	}
}

func TestConfig_ToSturdycOptions(t *testing.T) {
	cfg := DefaultConfig()
	if got := len(cfg.ToSturdycOptions()); got != 0 {
		t.Errorf("expected no options without eviction interval, got %d", got)
	}

	cfg.EvictionInterval = time.Minute
	if got := len(cfg.ToSturdycOptions()); got != 1 {
		t.Errorf("expected one option with eviction interval, got %d", got)
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	if !strings.Contains(err.Error(), "Capacity") {
		t.Errorf("expected error message to mention the field, got %q", err.Error())
	}
}

func TestNewSturdycStore_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 0

	store, err := NewSturdycStore[string](cfg)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if store != nil {
		t.Errorf("expected nil store, got %v", store)
	}
}

func TestSturdycStore_SetGetDelete(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 100
	cfg.NumShards = 4

	store, err := NewSturdycStore[int](cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	store.Set("workouts::list::owner=u1", 1)
	store.Set("goals::list::owner=u1", 2)

	if v, ok := store.Get("workouts::list::owner=u1"); !ok || v != 1 {
		t.Errorf("expected (1, true), got (%d, %v)", v, ok)
	}

	if store.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", store.Len())
	}

	keys := store.Keys()
	sort.Strings(keys)
	want := []string{"goals::list::owner=u1", "workouts::list::owner=u1"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("expected keys %v, got %v", want, keys)
	}

	store.Delete("goals::list::owner=u1")
	if _, ok := store.Get("goals::list::owner=u1"); ok {
		t.Error("expected deleted key to miss")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 entry after delete, got %d", store.Len())
	}
}

func TestSturdycStore_OverwriteReplacesValue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 10
	cfg.NumShards = 1

	store, err := NewSturdycStore[string](cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.Set("k", "first")
	store.Set("k", "second")

	if v, _ := store.Get("k"); v != "second" {
		t.Errorf("expected overwritten value, got %q", v)
	}
}
