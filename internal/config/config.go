// Package config loads the YAML run configuration for the colony simulation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/starcolony/internal/economy"
)

// AdminKeyEnv names the environment variable holding the API admin key.
const AdminKeyEnv = "STARCOLONY_ADMIN_KEY"

type Config struct {
	Seed          int64         `yaml:"seed"`
	Turns         uint64        `yaml:"turns"` // 0 runs until stopped
	TurnInterval  time.Duration `yaml:"turn_interval"`
	DBPath        string        `yaml:"db_path"`
	TurnLogDir    string        `yaml:"turn_log_dir"`
	APIAddr       string        `yaml:"api_addr"` // Empty disables the HTTP API
	Parallelism   int           `yaml:"parallelism"`
	CatalogPath   string        `yaml:"catalog_path,omitempty"`
	SnapshotEvery uint64        `yaml:"snapshot_every"`
	SaveEvery     uint64        `yaml:"save_every"`
	RecentEvents  int           `yaml:"recent_events"`
	Empires       []EmpireSpec  `yaml:"empires"`

	AdminKey string `yaml:"-"`
}

type EmpireSpec struct {
	ID       uint64       `yaml:"id"`
	Name     string       `yaml:"name"`
	Colonies []ColonySpec `yaml:"colonies"`
}

type ColonySpec struct {
	Name          string         `yaml:"name"`
	PlanetID      uint64         `yaml:"planet_id"`
	SystemID      uint64         `yaml:"system_id"`
	Colonists     int            `yaml:"colonists"`
	Species       string         `yaml:"species"`
	Habitability  int            `yaml:"habitability"` // 0 asks the survey
	MaxPopulation int            `yaml:"max_population"`
	Stockpile     economy.Bundle `yaml:"stockpile"`
	BuildQueue    []string       `yaml:"build_queue,omitempty"`
	Invest        bool           `yaml:"invest_infrastructure"`
}

// Load reads a config file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.Normalize()
	cfg.AdminKey = os.Getenv(AdminKeyEnv)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults is a two-empire demo campaign.
func Defaults() Config {
	return Config{
		Seed:          42,
		TurnInterval:  time.Second,
		DBPath:        "data/starcolony.db",
		TurnLogDir:    "data/turnlog",
		APIAddr:       ":8080",
		Parallelism:   4,
		SnapshotEvery: 10,
		SaveEvery:     1,
		RecentEvents:  500,
		Empires: []EmpireSpec{
			{
				ID:   1,
				Name: "Terran Accord",
				Colonies: []ColonySpec{
					{
						Name:          "New Meridian",
						PlanetID:      101,
						SystemID:      1,
						Colonists:     120,
						Species:       "human",
						Habitability:  85,
						MaxPopulation: 2000,
						Stockpile:     economy.Bundle{Credits: 800, Food: 50, Production: 200},
						BuildQueue:    []string{"hydroponics_farm", "trade_hub", "research_lab", "holo_theater", "factory", "academy"},
						Invest:        true,
					},
					{
						Name:          "Cinder Reach",
						PlanetID:      102,
						SystemID:      1,
						Colonists:     40,
						Species:       "human",
						MaxPopulation: 600,
						Stockpile:     economy.Bundle{Credits: 300, Food: 20},
						BuildQueue:    []string{"hydroponics_farm", "mining_station", "security_office"},
					},
				},
			},
			{
				ID:   2,
				Name: "Krell Dominion",
				Colonies: []ColonySpec{
					{
						Name:          "Vault of Ash",
						PlanetID:      201,
						SystemID:      2,
						Colonists:     90,
						Species:       "krell",
						Habitability:  60,
						MaxPopulation: 1500,
						Stockpile:     economy.Bundle{Credits: 600, Food: 40, Production: 300},
						BuildQueue:    []string{"hydroponics_farm", "factory", "defense_battery", "security_office"},
						Invest:        true,
					},
				},
			},
		},
	}
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
	if c.TurnInterval < 0 {
		c.TurnInterval = 0
	}
	if c.RecentEvents <= 0 {
		c.RecentEvents = 500
	}
	if c.SaveEvery == 0 {
		c.SaveEvery = 1
	}
	for i := range c.Empires {
		e := &c.Empires[i]
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			e.Name = fmt.Sprintf("Empire %d", e.ID)
		}
		for j := range e.Colonies {
			col := &e.Colonies[j]
			col.Name = strings.TrimSpace(col.Name)
			col.Species = strings.ToLower(strings.TrimSpace(col.Species))
			if col.Species == "" {
				col.Species = "human"
			}
			for k, t := range col.BuildQueue {
				col.BuildQueue[k] = strings.ToLower(strings.TrimSpace(t))
			}
		}
	}
}

// Validate checks structural constraints. Catalog references are checked when the
// simulation is assembled.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if len(c.Empires) == 0 {
		return errors.New("at least one empire is required")
	}
	seen := make(map[uint64]bool, len(c.Empires))
	for _, e := range c.Empires {
		if e.ID == 0 {
			return fmt.Errorf("empire %q: id must be positive", e.Name)
		}
		if seen[e.ID] {
			return fmt.Errorf("empire id %d used twice", e.ID)
		}
		seen[e.ID] = true
		for _, col := range e.Colonies {
			if col.Name == "" {
				return fmt.Errorf("empire %d: colony without a name", e.ID)
			}
			if col.Colonists < 10 {
				return fmt.Errorf("colony %q: %d colonists, need at least 10", col.Name, col.Colonists)
			}
			if col.Habitability < 0 || col.Habitability > 100 {
				return fmt.Errorf("colony %q: habitability %d out of range", col.Name, col.Habitability)
			}
			if col.MaxPopulation < 0 {
				return fmt.Errorf("colony %q: negative max population", col.Name)
			}
		}
	}
	return nil
}
