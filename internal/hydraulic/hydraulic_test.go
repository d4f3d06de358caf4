package hydraulic

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/optinet/internal/network"
)

// #region helpers
func triangle(t *testing.T) *network.Network {
	t.Helper()
	net, err := network.NewNetwork("tri",
		[]network.Node{
			{ID: "R", Kind: network.Reservoir, Elevation: 40},
			{ID: "A", Demand: 0.01},
			{ID: "B", Demand: 0.02},
		},
		[]network.Pipe{
			{ID: "p1", From: "R", To: "A", Length: 100, Roughness: 130},
			{ID: "p2", From: "A", To: "B", Length: 100, Roughness: 130},
			{ID: "p3", From: "B", To: "R", Length: 100, Roughness: 130, Candidate: true},
		})
	require.NoError(t, err)
	return net
}

func catalog(t *testing.T) network.Catalog {
	t.Helper()
	cat, err := network.NewCatalog([]network.CatalogEntry{
		{Diameter: 100, UnitCost: 10},
		{Diameter: 150, UnitCost: 15},
		{Diameter: 200, UnitCost: 22},
	})
	require.NoError(t, err)
	return cat
}

// #endregion helpers

// #region request-tests
func TestNewRequest_SkipsAbsentPipes(t *testing.T) {
	net := triangle(t)
	a := network.Decode(net, catalog(t), []int{0, 1, 2}, []bool{true, true, false})
	req := NewRequest(net, a)

	assert.Equal(t, "tri", req.Network)
	assert.Len(t, req.Nodes, 3)
	require.Len(t, req.Pipes, 2)
	assert.Equal(t, 150.0, req.Pipes[1].Diameter)
	assert.Equal(t, network.Reservoir, req.Nodes[0].Kind)
}

func TestResultVelocity(t *testing.T) {
	r := Result{
		Velocities: map[string]float64{"p1": -1.5},
		Flows:      map[string]float64{"p2": 0.0157},
	}
	v, ok := r.Velocity("p1", 100)
	require.True(t, ok)
	assert.Equal(t, 1.5, v)

	v, ok = r.Velocity("p2", 100)
	require.True(t, ok)
	assert.InDelta(t, 0.0157/(math.Pi*0.01/4), v, 1e-9)

	_, ok = r.Velocity("p3", 100)
	assert.False(t, ok)
}

func TestResultCheck(t *testing.T) {
	net := triangle(t)
	req := NewRequest(net, network.Decode(net, catalog(t), []int{0, 0, 0}, []bool{true, true, false}))
	ok := Result{
		Pressures:  map[string]float64{"A": 25, "B": 12},
		Velocities: map[string]float64{"p1": 1.2},
		Flows:      map[string]float64{"p2": 0.01},
	}
	require.NoError(t, ok.Check(req))

	nan := ok
	nan.Pressures = map[string]float64{"A": math.NaN(), "B": 12}
	assert.True(t, IsNonConvergence(nan.Check(req)))

	inf := ok
	inf.Flows = map[string]float64{"p2": math.Inf(-1)}
	assert.True(t, IsNonConvergence(inf.Check(req)))

	truncated := Result{Pressures: map[string]float64{"A": 50, "B": 50}}
	err := truncated.Check(req)
	assert.ErrorIs(t, err, ErrIncompleteResult)
	assert.False(t, IsNonConvergence(err))
}

// #endregion request-tests

// #region wrapper-tests
func TestWithTimeout_ReportsNonConvergence(t *testing.T) {
	hang := SolverFunc(func(ctx context.Context, _ Request) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	s := WithTimeout(hang, 20*time.Millisecond)

	_, err := s.Simulate(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, IsNonConvergence(err))
}

func TestWithTimeout_IgnoringSolverStillReturns(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stubborn := SolverFunc(func(_ context.Context, _ Request) (Result, error) {
		<-release
		return Result{}, nil
	})
	s := WithTimeout(stubborn, 20*time.Millisecond)

	start := time.Now()
	_, err := s.Simulate(context.Background(), Request{})
	assert.True(t, IsNonConvergence(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWithTimeout_ParentCancelIsNotNonConvergence(t *testing.T) {
	hang := SolverFunc(func(ctx context.Context, _ Request) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	s := WithTimeout(hang, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Simulate(ctx, Request{})
	require.Error(t, err)
	assert.False(t, IsNonConvergence(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeout_PassesThrough(t *testing.T) {
	crash := errors.New("engine exploded")
	s := WithTimeout(SolverFunc(func(context.Context, Request) (Result, error) {
		return Result{}, crash
	}), time.Second)
	_, err := s.Simulate(context.Background(), Request{})
	assert.ErrorIs(t, err, crash)

	same := Surrogate{}
	assert.Equal(t, Solver(same), WithTimeout(same, 0))
}

func concurrencyProbe(active, peak *int32) Solver {
	return SolverFunc(func(context.Context, Request) (Result, error) {
		n := atomic.AddInt32(active, 1)
		for {
			p := atomic.LoadInt32(peak)
			if n <= p || atomic.CompareAndSwapInt32(peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(active, -1)
		return Result{}, nil
	})
}

func TestSerialized_OneCallAtATime(t *testing.T) {
	var active, peak int32
	s := Serialized(concurrencyProbe(&active, &peak))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Simulate(context.Background(), Request{})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak)
}

func TestHandlePool_BoundsConcurrency(t *testing.T) {
	var active, peak int32
	pool := NewHandlePool(concurrencyProbe(&active, &peak), concurrencyProbe(&active, &peak))
	assert.Equal(t, 2, pool.Size())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = pool.Simulate(context.Background(), Request{})
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak, int32(2))

	empty := NewHandlePool()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := empty.Simulate(ctx, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// #endregion wrapper-tests

// #region surrogate-tests
// Larger diameters everywhere never lower a pressure or raise a velocity.
func TestSurrogate_Monotone(t *testing.T) {
	net := triangle(t)
	cat := catalog(t)
	s := DefaultSurrogate()

	for lvl := 0; lvl < 2; lvl++ {
		small := network.Decode(net, cat, []int{lvl, lvl, lvl}, nil)
		large := network.Decode(net, cat, []int{lvl + 1, lvl + 1, lvl + 1}, nil)
		rs, err := s.Simulate(context.Background(), NewRequest(net, small))
		require.NoError(t, err)
		rl, err := s.Simulate(context.Background(), NewRequest(net, large))
		require.NoError(t, err)

		for id, p := range rs.Pressures {
			assert.GreaterOrEqual(t, rl.Pressures[id], p, "node %s", id)
		}
		for id, v := range rs.Velocities {
			assert.LessOrEqual(t, rl.Velocities[id], v, "pipe %s", id)
		}
	}
}

func TestSurrogate_IsolatedJunction(t *testing.T) {
	net := triangle(t)
	a := network.Decode(net, catalog(t), []int{0, 0, 0}, []bool{true, false, false})
	_, err := DefaultSurrogate().Simulate(context.Background(), NewRequest(net, a))
	assert.True(t, IsNonConvergence(err))
}

func TestSurrogate_Values(t *testing.T) {
	net := triangle(t)
	a := network.Decode(net, catalog(t), []int{2, 0, 1}, nil)
	res, err := Surrogate{K: 1, Reference: 100, MinDemand: 1e-4}.Simulate(context.Background(), NewRequest(net, a))
	require.NoError(t, err)

	// A touches p1 (200) and p2 (100): smallest is 100 -> 1·1³/0.01
	assert.InDelta(t, 100.0, res.Pressures["A"], 1e-9)
	// B touches p2 (100) and p3 (150)
	assert.InDelta(t, 1.0/0.02, res.Pressures["B"], 1e-9)
	assert.Zero(t, res.Pressures["R"])
	assert.InDelta(t, VelocityFromFlow(0.02, 100), res.Velocities["p2"], 1e-12)
}

// #endregion surrogate-tests
