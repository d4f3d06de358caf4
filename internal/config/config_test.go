package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/optinet/internal/constraint"
	"github.com/danielpatrickdp/optinet/internal/evolve"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load("testdata/optimizer.yaml")
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Optimizer.PopulationSize)
	assert.Equal(t, uint64(1234), cfg.Optimizer.Seed)
	assert.Equal(t, 4, cfg.Optimizer.TournamentSize)
	assert.Equal(t, 2.5, cfg.Limits.MaxVelocity)
	assert.Equal(t, 2*time.Second, cfg.SolverTimeout)
	assert.Equal(t, 3, cfg.Executions)
	assert.False(t, cfg.LayoutSearch)
	require.NoError(t, cfg.Validate())
}

func TestParse_KeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Parse([]byte("workers: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, evolve.DefaultConfig(), cfg.Optimizer)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("optimizer:\n  populaton_size: 10\n"))
	assert.ErrorContains(t, err, "populaton_size")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OPTINET_POPULATION", "80")
	t.Setenv("OPTINET_SEED", "99")
	t.Setenv("OPTINET_SOLVER_TIMEOUT", "750ms")
	t.Setenv("OPTINET_MAX_VELOCITY", "1.8")
	t.Setenv("OPTINET_LAYOUT_SEARCH", "true")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, 80, cfg.Optimizer.PopulationSize)
	assert.Equal(t, uint64(99), cfg.Optimizer.Seed)
	assert.Equal(t, 750*time.Millisecond, cfg.SolverTimeout)
	assert.Equal(t, 1.8, cfg.Limits.MaxVelocity)
	assert.True(t, cfg.LayoutSearch)
}

func TestApplyEnv_ReportsBadValues(t *testing.T) {
	t.Setenv("OPTINET_WORKERS", "many")
	t.Setenv("OPTINET_SOLVER_TIMEOUT", "soon")

	cfg := Default()
	err := cfg.ApplyEnv()
	require.Error(t, err)
	assert.ErrorContains(t, err, "OPTINET_WORKERS")
	assert.ErrorContains(t, err, "OPTINET_SOLVER_TIMEOUT")
	assert.Equal(t, Default().Workers, cfg.Workers)
}

func TestValidate_ViolationCap(t *testing.T) {
	cfg := Default()
	assert.Zero(t, cfg.ViolationCap)
	require.NoError(t, cfg.Validate())

	cfg.ViolationCap = -1
	assert.ErrorIs(t, cfg.Validate(), constraint.ErrInvalidPolicy)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Optimizer.MutationProb = 2
	cfg.PenaltyWeight = 0
	cfg.Workers = 0
	cfg.Executions = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, evolve.ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorContains(t, err, "mutation_prob")
	assert.ErrorContains(t, err, "penalty weight")
	assert.ErrorContains(t, err, "workers")
	assert.ErrorContains(t, err, "executions")
}
