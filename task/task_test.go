package task

import (
	"context"
	"errors"
	"testing"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/junction-sim/entity"
	"github.com/tsinghua-fib-lab/junction-sim/entity/junction"
	"github.com/tsinghua-fib-lab/junction-sim/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/junction-sim/utils/config"
)

// northEastConfig 南北与东西两条互相冲突的车道，各5步绿灯
func northEastConfig() config.Config {
	c := config.Config{
		Control: config.Control{
			Step:          config.ControlStep{Start: 0, Total: 20, Interval: 1},
			CrossingTicks: 2,
		},
		Lanes: []config.Lane{
			{ID: 1, Approach: "north"},
			{ID: 2, Approach: "east"},
		},
		Conflicts: []config.Conflict{
			{A: config.Movement{Lane: 1, Direction: "any"}, B: config.Movement{Lane: 2, Direction: "any"}},
		},
		Phases: []config.Phase{
			{Name: "north", Lanes: []int32{1}, Duration: 5},
			{Name: "east", Lanes: []int32{2}, Duration: 5},
		},
	}
	c.SetDefaults()
	return c
}

func newTestContext(t *testing.T, c config.Config, opts ...Option) *Context {
	t.Helper()
	ctx, err := NewContext("test", c, opts...)
	require.NoError(t, err)
	return ctx
}

func submit(t *testing.T, ctx *Context, laneID int32) int32 {
	t.Helper()
	id, err := ctx.Submit(laneID, entity.DIRECTION_STRAIGHT, entity.KIND_NORMAL)
	require.NoError(t, err)
	return id
}

func steps(t *testing.T, ctx *Context, n int) {
	t.Helper()
	for range n {
		require.NoError(t, ctx.Step())
	}
}

func TestNorthEastScenario(t *testing.T) {
	ctx := newTestContext(t, northEastConfig())
	north := submit(t, ctx, 1)
	east := submit(t, ctx, 2)

	// tick 0
	steps(t, ctx, 1)
	snap := ctx.Snapshot()
	assert.Equal(t, int32(0), snap.Tick)
	assert.Equal(t, "north", snap.Phase.Name)
	require.Len(t, snap.InTransit, 1)
	assert.Equal(t, north, snap.InTransit[0].VehicleID)
	assert.Equal(t, int32(0), snap.InTransit[0].EntryTick)
	assert.Equal(t, int32(2), snap.InTransit[0].ExitTick)
	l2, ok := snap.Lane(2)
	require.True(t, ok)
	assert.Equal(t, 1, l2.QueueLength)
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_RED, l2.Signal)

	// tick 2: 北向车辆完成
	steps(t, ctx, 2)
	snap = ctx.Snapshot()
	assert.Equal(t, int32(2), snap.Tick)
	assert.Empty(t, snap.InTransit)
	assert.Equal(t, int64(1), snap.Stats.Completed)

	// tick 4: 东向仍在排队
	steps(t, ctx, 2)
	snap = ctx.Snapshot()
	assert.Equal(t, "north", snap.Phase.Name)
	l2, _ = snap.Lane(2)
	assert.Equal(t, 1, l2.QueueLength)

	// tick 5: 东向放行
	steps(t, ctx, 1)
	snap = ctx.Snapshot()
	assert.Equal(t, int32(5), snap.Tick)
	assert.Equal(t, "east", snap.Phase.Name)
	assert.Equal(t, []int32{2}, snap.GrantedLanes)
	require.Len(t, snap.InTransit, 1)
	assert.Equal(t, east, snap.InTransit[0].VehicleID)
	assert.Equal(t, int32(5), snap.InTransit[0].EntryTick)
	assert.Equal(t, int32(7), snap.InTransit[0].ExitTick)
	l2, _ = snap.Lane(2)
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_GREEN, l2.Signal)
	assert.Equal(t, 5.0, l2.AvgWait)

	// tick 7: 东向完成
	steps(t, ctx, 2)
	snap = ctx.Snapshot()
	assert.Empty(t, snap.InTransit)
	assert.Equal(t, int64(2), snap.Stats.Admitted)
	assert.Equal(t, int64(2), snap.Stats.Completed)
	assert.Equal(t, 2.5, snap.Stats.AvgWait)
}

func capacityOneConfig(policy string) config.Config {
	c := northEastConfig()
	c.Lanes[0].Capacity = 1
	c.Control.FullPolicy = policy
	return c
}

func TestLaneFullReject(t *testing.T) {
	ctx := newTestContext(t, capacityOneConfig(config.POLICY_REJECT))
	submit(t, ctx, 1)
	submit(t, ctx, 1)
	steps(t, ctx, 1)

	snap := ctx.Snapshot()
	assert.Equal(t, int64(1), snap.Stats.Dropped)
	assert.Equal(t, int64(1), snap.Stats.Blocked)
	assert.Equal(t, int64(1), snap.Stats.Admitted)
	assert.Zero(t, ctx.inbox.Len())

	steps(t, ctx, 3)
	assert.Equal(t, int64(1), ctx.Snapshot().Stats.Admitted)
}

func TestLaneFullBlock(t *testing.T) {
	ctx := newTestContext(t, capacityOneConfig(config.POLICY_BLOCK))
	submit(t, ctx, 1)
	second := submit(t, ctx, 1)
	steps(t, ctx, 1)

	snap := ctx.Snapshot()
	assert.Equal(t, int64(1), snap.Stats.Blocked)
	assert.Zero(t, snap.Stats.Dropped)
	assert.Equal(t, 1, ctx.inbox.Len())

	// tick 1: 车道已空，推迟的车辆入队并放行
	steps(t, ctx, 1)
	snap = ctx.Snapshot()
	assert.Equal(t, int64(2), snap.Stats.Admitted)
	assert.Equal(t, int64(1), snap.Stats.Blocked)
	require.Len(t, snap.InTransit, 2)
	assert.Equal(t, second, snap.InTransit[1].VehicleID)
	assert.Equal(t, int32(1), snap.InTransit[1].EntryTick)
}

func TestLaneFullBlockHoldsGenerator(t *testing.T) {
	c := capacityOneConfig(config.POLICY_BLOCK)
	// 北向车道从不放行
	c.Phases = []config.Phase{{Name: "east", Lanes: []int32{2}, Duration: 5}}
	c.Arrival = config.Arrival{Seed: 9, Rate: 1}
	ctx := newTestContext(t, c)

	steps(t, ctx, 1)
	l1, _ := ctx.Snapshot().Lane(1)
	require.Equal(t, 1, l1.QueueLength)

	// 手动提交的到达被推迟，每辆只计一次
	submit(t, ctx, 1)
	submit(t, ctx, 1)
	for range 50 {
		steps(t, ctx, 1)
		assert.Equal(t, 2, ctx.inbox.Len())
		assert.Equal(t, int64(2), ctx.Snapshot().Stats.Blocked)
	}
	l1, _ = ctx.Snapshot().Lane(1)
	assert.Equal(t, 1, l1.QueueLength)
	assert.Zero(t, ctx.Snapshot().Stats.Dropped)

	// 东向车道不受影响，每步生成一辆
	l2, _ := ctx.Snapshot().Lane(2)
	assert.Equal(t, int64(51), l2.Admitted)
}

func TestLaneFullGrow(t *testing.T) {
	c := capacityOneConfig(config.POLICY_GROW)
	// 东向相位先放行，北向车辆留在车道
	c.Phases[0], c.Phases[1] = c.Phases[1], c.Phases[0]
	ctx := newTestContext(t, c)
	submit(t, ctx, 1)
	submit(t, ctx, 1)
	steps(t, ctx, 1)

	l1, _ := ctx.Snapshot().Lane(1)
	assert.Equal(t, 2, l1.QueueLength)
	assert.Equal(t, 2, l1.Capacity)
	assert.Zero(t, ctx.Snapshot().Stats.Dropped)
}

func TestLaneFIFO(t *testing.T) {
	c := northEastConfig()
	c.Control.CrossingTicks = 1
	ctx := newTestContext(t, c)
	ids := []int32{submit(t, ctx, 1), submit(t, ctx, 1), submit(t, ctx, 1)}

	for i, id := range ids {
		steps(t, ctx, 1)
		snap := ctx.Snapshot()
		require.Len(t, snap.InTransit, 1)
		assert.Equal(t, id, snap.InTransit[0].VehicleID)
		assert.Equal(t, int32(i), snap.InTransit[0].EntryTick)
	}
}

func TestSubmitUnknownLane(t *testing.T) {
	ctx := newTestContext(t, northEastConfig())
	_, err := ctx.Submit(9, entity.DIRECTION_LEFT, entity.KIND_NORMAL)
	assert.ErrorIs(t, err, ErrUnknownLane)
}

func TestInvalidPhaseConfig(t *testing.T) {
	c := northEastConfig()
	c.Phases = append(c.Phases, config.Phase{Name: "both", Lanes: []int32{1, 2}, Duration: 3})
	_, err := NewContext("test", c)
	assert.ErrorIs(t, err, trafficlight.ErrInvalidPhase)

	c = northEastConfig()
	c.Phases = nil
	_, err = NewContext("test", c)
	assert.ErrorIs(t, err, trafficlight.ErrInvalidPhase)

	c = northEastConfig()
	c.Lanes[0].Approach = "up"
	_, err = NewContext("test", c)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestHaltOnConflictViolation(t *testing.T) {
	c := northEastConfig()
	c.Conflicts = nil
	c.Control.CrossingTicks = 5
	c.Phases = []config.Phase{{Name: "all", Lanes: []int32{1, 2}, Duration: 10}}
	ctx := newTestContext(t, c)
	a := submit(t, ctx, 1)
	b := submit(t, ctx, 2)
	steps(t, ctx, 1)
	require.Equal(t, 2, ctx.arbiter.Len())

	// 运行中出现的冲突只能来自仲裁器的错误，这里直接修改冲突矩阵模拟
	ctx.conflicts.Add(
		entity.Path{Lane: 1, Direction: entity.DIRECTION_STRAIGHT},
		entity.Path{Lane: 2, Direction: entity.DIRECTION_STRAIGHT},
	)
	err := ctx.Step()
	require.Error(t, err)
	assert.ErrorIs(t, err, junction.ErrConflictViolation)
	var violation *junction.ConflictViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, a, violation.VehicleA)
	assert.Equal(t, b, violation.VehicleB)
	assert.Equal(t, int32(1), violation.Tick)

	tick := ctx.Clock().Current()
	assert.Equal(t, err, ctx.Step())
	assert.Equal(t, err, ctx.Err())
	assert.Equal(t, tick, ctx.Clock().Current())
}

func TestPermissivePhaseIsSafe(t *testing.T) {
	c := northEastConfig()
	c.Phases = []config.Phase{{Name: "all", Lanes: []int32{1, 2}, Duration: 10, Permissive: true}}
	c.Arrival = config.Arrival{Seed: 3, Rate: 0.6}
	ctx := newTestContext(t, c)

	for range 60 {
		require.NoError(t, ctx.Step())
		transit := ctx.arbiter.InTransit()
		for i, x := range transit {
			for _, y := range transit[i+1:] {
				assert.False(t, ctx.conflicts.Conflicts(x.Path, y.Path), "tick %d", ctx.Clock().Current())
			}
		}
	}
	assert.Positive(t, ctx.Snapshot().Stats.Admitted)
}

func TestLivenessAndConservation(t *testing.T) {
	c := northEastConfig()
	c.Arrival = config.Arrival{Seed: 11, Rate: 0.3}
	c.Control.Step.Total = 200
	ctx := newTestContext(t, c)

	for range 150 {
		require.NoError(t, ctx.Step())
	}
	// 停止到达，清空队列
	ctx.generator = nil
	for range 60 {
		require.NoError(t, ctx.Step())
	}
	snap := ctx.Snapshot()
	submitted := int64(ctx.nextID - 1)
	assert.Positive(t, submitted)
	assert.Equal(t, submitted, snap.Stats.Admitted+snap.Stats.Dropped)
	assert.Equal(t, snap.Stats.Admitted, snap.Stats.Completed)
	assert.Empty(t, snap.InTransit)
	for _, l := range snap.Lanes {
		assert.Zero(t, l.QueueLength, "lane %d", l.ID)
		assert.Positive(t, l.Admitted, "lane %d", l.ID)
	}
}

func TestDeterminism(t *testing.T) {
	run := func() []Snapshot {
		c := northEastConfig()
		c.Arrival = config.Arrival{
			Seed:       42,
			Rate:       0.5,
			Directions: map[string]float64{"straight": 1, "left": 1},
			Kinds:      map[string]float64{"normal": 3, "heavy": 1},
		}
		c.Control.Controller = config.CONTROLLER_MAX_PRESSURE
		ctx := newTestContext(t, c)
		out := make([]Snapshot, 0)
		for range 80 {
			require.NoError(t, ctx.Step())
			out = append(out, ctx.Snapshot())
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestMaxPressureSwitchesToLoadedLane(t *testing.T) {
	c := northEastConfig()
	c.Control.Controller = config.CONTROLLER_MAX_PRESSURE
	c.Control.CrossingTicks = 1
	c.Phases[0].Duration = 1
	c.Phases[1].Duration = 1
	ctx := newTestContext(t, c)
	for range 3 {
		submit(t, ctx, 2)
	}

	steps(t, ctx, 1)
	assert.Equal(t, "north", ctx.Snapshot().Phase.Name)
	assert.Zero(t, ctx.Snapshot().Stats.Admitted)

	steps(t, ctx, 1)
	snap := ctx.Snapshot()
	assert.Equal(t, "east", snap.Phase.Name)
	assert.Equal(t, 1, snap.Phase.Index)
	assert.Equal(t, int64(1), snap.Stats.Admitted)
}

func TestSnapshotIsCopy(t *testing.T) {
	ctx := newTestContext(t, northEastConfig())
	submit(t, ctx, 2)
	steps(t, ctx, 1)

	snap := ctx.LatestSnapshot()
	snap.GrantedLanes[0] = 99
	snap.Lanes[0].QueueLength = 99
	latest := ctx.LatestSnapshot()
	assert.Equal(t, []int32{1}, latest.GrantedLanes)
	assert.Zero(t, latest.Lanes[0].QueueLength)

	// 快照不随后续步进变化
	before := ctx.Snapshot()
	steps(t, ctx, 6)
	l2, _ := before.Lane(2)
	assert.Equal(t, 1, l2.QueueLength)

	tick, tm := ctx.PublishedClock()
	assert.Equal(t, int32(6), tick)
	assert.Equal(t, 6.0, tm)
}

type fakeRecorder struct {
	vehicles []entity.Vehicle
	closed   bool
}

func (r *fakeRecorder) Record(_ context.Context, vehicles []entity.Vehicle) error {
	r.vehicles = append(r.vehicles, vehicles...)
	return nil
}

func (r *fakeRecorder) Close(context.Context) error {
	r.closed = true
	return nil
}

type fakePublisher struct {
	ticks  []int32
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, snapshot any) error {
	p.ticks = append(p.ticks, snapshot.(Snapshot).Tick)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestRunWithOutputs(t *testing.T) {
	c := northEastConfig()
	c.Control.Step.Total = 10
	recorder := &fakeRecorder{}
	publisher := &fakePublisher{}
	ctx := newTestContext(t, c, WithRecorder(recorder), WithPublisher(publisher))
	submit(t, ctx, 1)
	submit(t, ctx, 2)

	require.NoError(t, ctx.Run(context.Background()))
	assert.Equal(t, int32(9), ctx.Clock().Current())
	assert.Len(t, publisher.ticks, 10)
	assert.Equal(t, int32(9), publisher.ticks[9])
	require.Len(t, recorder.vehicles, 2)
	assert.Equal(t, entity.STATE_COMPLETED, recorder.vehicles[0].State)
	assert.Equal(t, int32(2), recorder.vehicles[0].ExitTick)
	assert.Equal(t, int32(7), recorder.vehicles[1].ExitTick)
	assert.True(t, recorder.closed)
	assert.True(t, publisher.closed)
}

func TestRunCanceled(t *testing.T) {
	ctx := newTestContext(t, northEastConfig())
	runCtx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, ctx.Run(runCtx))
	assert.False(t, ctx.started)
}

func TestRunStop(t *testing.T) {
	ctx := newTestContext(t, northEastConfig())
	ctx.Stop()
	require.NoError(t, ctx.Run(context.Background()))
	// Stop只在两步之间生效
	assert.True(t, ctx.started)
	assert.Equal(t, int32(0), ctx.Clock().Current())
}
