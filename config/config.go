// Package config loads session configuration in three layers: built-in
// defaults, an optional YAML file and FITSYNC_ environment variables.
// Later layers win.
//
// Nested keys are separated by a double underscore in the environment:
//
//	FITSYNC_CACHE__CAPACITY=5000
//	FITSYNC_POLLING__INTERVAL=2m
//	FITSYNC_STALENESS__WORKOUTS__RECENT=30s
package config

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-fitsync/cache"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/logging"
	"github.com/goliatone/go-fitsync/mutation"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Config struct {
	Cache CacheConfig `koanf:"cache"`
	// Staleness overrides windows of the default staleness table, keyed
	// by entity type then query kind.
	Staleness map[string]map[string]time.Duration `koanf:"staleness"`
	Polling   PollingConfig                       `koanf:"polling"`
	Mutations MutationsConfig                     `koanf:"mutations"`
	Logging   logging.Config                      `koanf:"logging"`
	Database  DatabaseConfig                      `koanf:"database"`
}

type CacheConfig struct {
	Capacity           int           `koanf:"capacity"`
	NumShards          int           `koanf:"num_shards"`
	Retention          time.Duration `koanf:"retention"`
	EvictionPercentage int           `koanf:"eviction_percentage"`
	EvictionInterval   time.Duration `koanf:"eviction_interval"`
}

// PollingConfig controls the fixed-interval refetch of overdue goals.
type PollingConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

type MutationsConfig struct {
	// SerializeSameKey queues mutations of the same entity type and owner.
	SerializeSameKey bool `koanf:"serialize_same_key"`
	LockStripes      int  `koanf:"lock_stripes"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
	// CreateSchema creates missing tables on startup.
	CreateSchema bool `koanf:"create_schema"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cc := cache.DefaultConfig()
	poll := cache.DefaultPollPolicy()
	mo := mutation.DefaultOptions()

	return &Config{
		Cache: CacheConfig{
			Capacity:           cc.Capacity,
			NumShards:          cc.NumShards,
			Retention:          cc.Retention,
			EvictionPercentage: cc.EvictionPercentage,
			EvictionInterval:   cc.EvictionInterval,
		},
		Staleness: map[string]map[string]time.Duration{},
		Polling: PollingConfig{
			Enabled:  true,
			Interval: poll.Interval,
		},
		Mutations: MutationsConfig{
			SerializeSameKey: mo.SerializeSameKey,
			LockStripes:      mo.LockStripes,
		},
		Logging: logging.DefaultConfig(),
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			DSN:          "file:fitsync.db?cache=shared",
			CreateSchema: true,
		},
	}
}

func (c CacheConfig) ToCache() cache.Config {
	return cache.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		Retention:          c.Retention,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func (c PollingConfig) ToPolicy() cache.PollPolicy {
	p := cache.DefaultPollPolicy()
	p.Interval = c.Interval
	return p
}

func (c MutationsConfig) ToOptions() mutation.Options {
	return mutation.Options{SerializeSameKey: c.SerializeSameKey, LockStripes: c.LockStripes}
}

// StalenessTable returns the default table with the configured overrides
// applied. Unknown entity types or kinds are errors.
func (c *Config) StalenessTable() (cache.StalenessTable, error) {
	overrides := cache.StalenessTable{}
	for e, kinds := range c.Staleness {
		t := entity.Type(e)
		if !t.Valid() {
			return nil, fmt.Errorf("config: staleness: unknown entity %q", e)
		}
		for k, d := range kinds {
			overrides[cache.StalenessKey{Entity: t, Kind: cache.QueryKind(k)}] = d
		}
	}

	table := cache.DefaultStaleness().Merge(overrides)
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if table.Max() > c.Cache.Retention {
		return nil, fmt.Errorf("config: longest staleness window %v exceeds cache retention %v", table.Max(), c.Cache.Retention)
	}
	return table, nil
}

func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Cache),
		validation.Field(&c.Polling),
		validation.Field(&c.Mutations),
		validation.Field(&c.Logging),
		validation.Field(&c.Database),
	)
	if err != nil {
		return err
	}
	_, err = c.StalenessTable()
	return err
}

func (c CacheConfig) Validate() error {
	return c.ToCache().Validate()
}

func (c PollingConfig) Validate() error {
	if c.Enabled && c.Interval <= 0 {
		return errors.New("interval must be positive when polling is enabled")
	}
	return nil
}

func (c MutationsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LockStripes, validation.Min(1)),
	)
}

func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
	)
}
