package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/optinet/internal/constraint"
	"github.com/danielpatrickdp/optinet/internal/evolve"
)

var ErrInvalid = errors.New("config: invalid")

// #region types

// Config holds every optimizer option.
type Config struct {
	Optimizer     evolve.Config     `yaml:"optimizer" json:"optimizer"`
	Limits        constraint.Limits `yaml:"limits" json:"limits"`
	PenaltyWeight float64           `yaml:"penalty_weight" json:"penalty_weight"`
	ViolationCap  float64           `yaml:"violation_cap" json:"violation_cap"` // 0 derives it from the network
	Workers       int               `yaml:"workers" json:"workers"`
	SolverTimeout time.Duration     `yaml:"solver_timeout" json:"solver_timeout"` // 0 disables
	CacheSize     int               `yaml:"cache_size" json:"cache_size"`
	Executions    int               `yaml:"executions" json:"executions"`
	LayoutSearch  bool              `yaml:"layout_search" json:"layout_search"`
}

// #endregion types

// #region defaults

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Optimizer:     evolve.DefaultConfig(),
		Limits:        constraint.DefaultLimits(),
		PenaltyWeight: 1000,
		ViolationCap:  0,
		Workers:       runtime.NumCPU(),
		SolverTimeout: 10 * time.Second,
		CacheSize:     4096,
		Executions:    1,
	}
}

// #endregion defaults

// #region load

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// #endregion load

// #region env

// ApplyEnv overrides fields from OPTINET_POPULATION, OPTINET_GENERATIONS,
// OPTINET_STAGNATION, OPTINET_SEED, OPTINET_WORKERS, OPTINET_EXECUTIONS,
// OPTINET_SOLVER_TIMEOUT, OPTINET_MIN_PRESSURE, OPTINET_MAX_VELOCITY,
// OPTINET_PENALTY_WEIGHT and OPTINET_LAYOUT_SEARCH.
func (c *Config) ApplyEnv() error {
	var errs []error
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
				return
			}
			*dst = n
		}
	}
	envFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
				return
			}
			*dst = f
		}
	}

	envInt("OPTINET_POPULATION", &c.Optimizer.PopulationSize)
	envInt("OPTINET_GENERATIONS", &c.Optimizer.MaxGenerations)
	envInt("OPTINET_STAGNATION", &c.Optimizer.StagnationLimit)
	envInt("OPTINET_WORKERS", &c.Workers)
	envInt("OPTINET_EXECUTIONS", &c.Executions)
	envFloat("OPTINET_MIN_PRESSURE", &c.Limits.MinPressure)
	envFloat("OPTINET_MAX_VELOCITY", &c.Limits.MaxVelocity)
	envFloat("OPTINET_PENALTY_WEIGHT", &c.PenaltyWeight)

	if v := os.Getenv("OPTINET_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("OPTINET_SEED=%q: %w", v, err))
		} else {
			c.Optimizer.Seed = n
		}
	}
	if v := os.Getenv("OPTINET_SOLVER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("OPTINET_SOLVER_TIMEOUT=%q: %w", v, err))
		} else {
			c.SolverTimeout = d
		}
	}
	if v := os.Getenv("OPTINET_LAYOUT_SEARCH"); v != "" {
		c.LayoutSearch = v == "true" || v == "1"
	}
	return errors.Join(errs...)
}

// #endregion env

// #region validate

// Validate reports every configuration error at once. It runs before any
// generation so a bad option never costs solver time.
func (c Config) Validate() error {
	var errs []error
	if err := c.Optimizer.Validate(); err != nil {
		errs = append(errs, err)
	}
	violationCap := c.ViolationCap
	if violationCap == 0 {
		violationCap = 1 // derived per network at run time
	}
	if _, err := constraint.NewPolicy(c.Limits, c.PenaltyWeight, violationCap, 0); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: workers %d must be positive", ErrInvalid, c.Workers))
	}
	if c.SolverTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: solver_timeout %s is negative", ErrInvalid, c.SolverTimeout))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("%w: cache_size %d is negative", ErrInvalid, c.CacheSize))
	}
	if c.Executions < 1 {
		errs = append(errs, fmt.Errorf("%w: executions %d must be positive", ErrInvalid, c.Executions))
	}
	return errors.Join(errs...)
}

// #endregion validate
