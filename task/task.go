package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/junction-sim/clock"
	"github.com/tsinghua-fib-lab/junction-sim/entity"
	"github.com/tsinghua-fib-lab/junction-sim/entity/junction"
	"github.com/tsinghua-fib-lab/junction-sim/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/junction-sim/entity/lane"
	"github.com/tsinghua-fib-lab/junction-sim/utils/config"
	"github.com/tsinghua-fib-lab/junction-sim/utils/container"
	"github.com/tsinghua-fib-lab/junction-sim/utils/metrics"
	"github.com/tsinghua-fib-lab/junction-sim/utils/output"
)

var (
	ErrUnknownLane = errors.New("unknown lane")
)

// Option 创建Context时的可选项
type Option func(*Context)

// WithSidecar 使用syncer sidecar驱动仿真步进并注册RPC服务
// 参数：serve-是否由Context启动sidecar服务协程
func WithSidecar(sidecar *syncer.Sidecar, serve bool) Option {
	return func(ctx *Context) {
		ctx.sidecar = sidecar
		ctx.serveSidecar = serve
	}
}

// WithRecorder 输出完成通过路口的车辆
func WithRecorder(r output.Recorder) Option {
	return func(ctx *Context) {
		ctx.recorder = r
	}
}

// WithPublisher 每步发布快照
func WithPublisher(p output.Publisher) Option {
	return func(ctx *Context) {
		ctx.publisher = p
	}
}

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态，按固定顺序驱动时钟、信控、车道与路口仲裁器
// 说明：Step只能在单个协程中调用；Submit、LatestSnapshot、PublishedClock可在任意协程调用
type Context struct {
	// 任务名
	job string
	// 停止指令，Run在两步之间检查
	stopping atomic.Bool
	// 已关闭
	closed atomic.Bool

	// 时钟
	clock *clock.Clock
	// Lane管理器
	laneManager *lane.LaneManager
	// 冲突矩阵
	conflicts *junction.ConflictMatrix
	// 信号灯
	light trafficlight.ITrafficLight
	// 路口仲裁器
	arbiter *junction.Arbiter
	// 车道满时的到达处理策略
	fullPolicy string

	// 到达缓冲区，跨协程写入的唯一入口
	inbox *container.Inbox[arrival]
	// 保证车辆ID与写入缓冲区的顺序一致
	submitMtx sync.Mutex
	nextID    int32
	// 随机到达生成器，rate为0时为nil
	generator *arrivalGenerator
	// block策略下有推迟到达的车道
	heldLanes map[int32]struct{}

	// 是否已处理过第一步
	started bool
	// 致命错误，出现后引擎停止
	fatal error

	stats     Stats
	laneStats map[int32]laneStats
	metrics   *metrics.Metrics

	// 最近一次发布的快照
	latest    Snapshot
	latestMtx sync.RWMutex

	// 辅助程序，处理分布式模式下相关调用
	sidecar      *syncer.Sidecar
	serveSidecar bool
	// sidecar close channel
	sidecarCloseCh chan struct{}

	recorder  output.Recorder
	publisher output.Publisher
}

// NewContext 创建新的仿真任务上下文
// 功能：根据配置构建车道、冲突矩阵、相位与信控、路口仲裁器
// 参数：
//   - job: 任务名称
//   - c: 已填充默认值的配置
//   - opts: 可选项
//
// 返回：配置不合法时返回错误（相位错误包装trafficlight.ErrInvalidPhase）
// 算法说明：
// 1. 创建车道并构建冲突矩阵
// 2. 校验相位，提示从未被放行的车道
// 3. 按配置选择固定周期或最大压力信控
// 4. 注册RPC服务，按需启动sidecar服务协程
// 5. 发布初始快照
func NewContext(job string, c config.Config, opts ...Option) (*Context, error) {
	ctx := &Context{
		job:            job,
		clock:          clock.New(c.Control.Step),
		laneManager:    lane.NewManager(),
		fullPolicy:     c.Control.FullPolicy,
		inbox:          container.NewInbox[arrival](),
		nextID:         1,
		laneStats:      make(map[int32]laneStats),
		heldLanes:      make(map[int32]struct{}),
		metrics:        metrics.New(job),
		sidecarCloseCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	if ctx.fullPolicy == "" {
		ctx.fullPolicy = config.POLICY_REJECT
	}

	if err := ctx.laneManager.Init(c.Lanes); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	conflicts, err := junction.NewConflictMatrix(c.Conflicts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	ctx.conflicts = conflicts

	phases, err := trafficlight.NewPhases(c.Phases, ctx.laneManager.Has, conflicts)
	if err != nil {
		return nil, err
	}
	if ungranted := trafficlight.UngrantedLanes(phases, ctx.laneManager.IDs()); len(ungranted) > 0 {
		log.Warnf("lanes %v are never granted, their vehicles will queue forever", ungranted)
	}
	switch c.Control.Controller {
	case config.CONTROLLER_MAX_PRESSURE:
		lanes := lo.Map(ctx.laneManager.Lanes(), func(l *lane.Lane, _ int) trafficlight.ILanePressure { return l })
		ctx.light = trafficlight.NewMaxPressureTrafficLight(
			phases, lanes, c.Control.MaxPressure.MaxRepeat, c.Control.MaxPressure.ClearanceTicks,
		)
	default:
		ctx.light = trafficlight.NewLocalTrafficLight(phases)
	}

	crossing := c.Control.CrossingTicks
	if crossing < 1 {
		return nil, fmt.Errorf("%w: crossing ticks must be >= 1, got %d", config.ErrInvalidConfig, crossing)
	}
	ctx.arbiter = junction.NewArbiter(conflicts, crossing)

	if c.Arrival.Rate > 0 {
		if ctx.generator, err = newArrivalGenerator(c.Arrival, ctx.laneManager.IDs()); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
	}

	ctx.publish(ctx.snapshot())
	log.Infof("Lane: %v", len(ctx.laneManager.Lanes()))
	log.Infof("Conflict: %v", conflicts.Len())
	log.Infof("Phase: %v (%s)", len(phases), c.Control.Controller)

	if ctx.sidecar != nil {
		clock.Register(ctx.sidecar, ctx)
		ctx.Register(ctx.sidecar)
		// sidecar协程，用于提供RPC服务
		if ctx.serveSidecar {
			go func() {
				err := ctx.sidecar.Serve()
				if err != nil {
					log.Panicf("failed to serve: %v", err)
				}
				ctx.sidecarCloseCh <- struct{}{}
			}()
		}
	}
	return ctx, nil
}

func (ctx *Context) Job() string {
	return ctx.job
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) LaneManager() *lane.LaneManager {
	return ctx.laneManager
}

func (ctx *Context) TrafficLight() trafficlight.ITrafficLight {
	return ctx.light
}

func (ctx *Context) Arbiter() *junction.Arbiter {
	return ctx.arbiter
}

func (ctx *Context) Metrics() *metrics.Metrics {
	return ctx.metrics
}

// Err 引擎停止的致命错误，未停止时为nil
func (ctx *Context) Err() error {
	return ctx.fatal
}

// Submit 提交一辆到达车辆
// 功能：车辆写入到达缓冲区，在下一次Step开始时入队，到达步为该步
// 返回：分配的车辆ID；车道不存在时返回ErrUnknownLane
// 说明：可在任意协程调用
func (ctx *Context) Submit(laneID int32, direction entity.Direction, kind entity.VehicleKind) (int32, error) {
	if !ctx.laneManager.Has(laneID) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownLane, laneID)
	}
	ctx.submitMtx.Lock()
	defer ctx.submitMtx.Unlock()
	id := ctx.nextID
	ctx.nextID++
	ctx.inbox.Add(arrival{id: id, lane: laneID, direction: direction, kind: kind})
	return id, nil
}

// Step 推进一步
// 算法说明：
// 1. 时钟加一并推进信控（第一次调用处理起始步，两者都不推进）
// 2. 生成随机到达，将缓冲区中的到达按写入顺序入队
// 3. 释放出口步已到的在途车辆
// 4. 按车道ID升序尝试放行各绿灯车道的队首车辆
// 5. 校验在途集合无冲突
// 6. 更新统计并发布快照
// 说明：出现致命错误后引擎停止，之后每次调用都返回同一错误
func (ctx *Context) Step() error {
	if ctx.fatal != nil {
		return ctx.fatal
	}
	var now int32
	if !ctx.started {
		ctx.started = true
		now = ctx.clock.Current()
	} else {
		now = ctx.clock.Advance()
		ctx.light.Tick()
	}

	if ctx.generator != nil {
		for _, a := range ctx.generator.Generate(ctx.held) {
			if _, err := ctx.Submit(a.lane, a.direction, a.kind); err != nil {
				log.Panicf("generated arrival on unknown lane: %v", err)
			}
		}
	}
	ctx.enqueueArrivals(now)

	completed := ctx.arbiter.ReleaseCompleted(now)
	ctx.stats.Completed += int64(len(completed))
	ctx.metrics.Completed(len(completed))

	for _, id := range ctx.light.GrantedLanes() {
		v, err := ctx.arbiter.TryAdmit(now, ctx.laneManager.Get(id))
		if err != nil {
			return ctx.halt(now, err)
		}
		if v != nil {
			ctx.onAdmitted(v)
		}
	}
	if err := ctx.arbiter.Verify(now); err != nil {
		return ctx.halt(now, err)
	}

	for _, l := range ctx.laneManager.Lanes() {
		ctx.metrics.SetLane(l.ID(), l.Length(), ctx.laneStats[l.ID()].avgWait())
	}
	ctx.metrics.SetTick(now, ctx.arbiter.Len())
	if ctx.recorder != nil && len(completed) > 0 {
		records := lo.Map(completed, func(v *entity.Vehicle, _ int) entity.Vehicle { return *v })
		if err := ctx.recorder.Record(context.Background(), records); err != nil {
			log.Warnf("step %d: record completed vehicles failed: %v", now, err)
		}
	}
	snap := ctx.snapshot()
	ctx.publish(snap)
	if ctx.publisher != nil {
		if err := ctx.publisher.Publish(context.Background(), snap); err != nil {
			log.Warnf("step %d: publish snapshot failed: %v", now, err)
		}
	}
	return nil
}

// held 车道是否对到达生成器施加反压
// 说明：只在block策略下生效，车道已满或仍有推迟的到达时不再生成新车辆
func (ctx *Context) held(laneID int32) bool {
	if ctx.fullPolicy != config.POLICY_BLOCK {
		return false
	}
	if _, ok := ctx.heldLanes[laneID]; ok {
		return true
	}
	return ctx.laneManager.Get(laneID).Full()
}

// countBlocked 统计一次因车道满而未能入队的到达，每辆车只计一次
func (ctx *Context) countBlocked(a *arrival) {
	if a.blocked {
		return
	}
	a.blocked = true
	ctx.stats.Blocked++
	ctx.metrics.Blocked()
}

// enqueueArrivals 将缓冲区中的到达入队，车道满时按策略处理
func (ctx *Context) enqueueArrivals(now int32) {
	pending := ctx.inbox.Drain()
	blocked := make([]arrival, 0)
	clear(ctx.heldLanes)
	for _, a := range pending {
		l := ctx.laneManager.Get(a.lane)
		v := &entity.Vehicle{
			ID:          a.id,
			Lane:        a.lane,
			Direction:   a.direction,
			Kind:        a.kind,
			ArrivalTick: now,
		}
		err := l.Enqueue(v)
		if err == nil {
			continue
		}
		if !errors.Is(err, lane.ErrLaneFull) {
			log.Panicf("step %d: enqueue vehicle %d: %v", now, a.id, err)
		}
		switch ctx.fullPolicy {
		case config.POLICY_BLOCK:
			ctx.countBlocked(&a)
			ctx.heldLanes[a.lane] = struct{}{}
			blocked = append(blocked, a)
		case config.POLICY_GROW:
			l.Grow()
			if err := l.Enqueue(v); err != nil {
				log.Panicf("step %d: enqueue vehicle %d after grow: %v", now, a.id, err)
			}
			log.Debugf("step %d: lane %d grows to %d", now, a.lane, l.Capacity())
		default:
			ctx.countBlocked(&a)
			ctx.stats.Dropped++
			ctx.metrics.Dropped()
			log.Debugf("step %d: drop vehicle %d: %v", now, a.id, err)
		}
	}
	ctx.inbox.Requeue(blocked)
}

func (ctx *Context) onAdmitted(v *entity.Vehicle) {
	wait := v.Wait()
	st := ctx.laneStats[v.Lane]
	st.admitted++
	st.waitSum += int64(wait)
	ctx.laneStats[v.Lane] = st
	ctx.stats.Admitted++
	ctx.metrics.Admitted(wait)
}

// halt 记录致命错误并停止引擎
func (ctx *Context) halt(now int32, err error) error {
	ctx.fatal = fmt.Errorf("step %d: %w", now, err)
	log.Errorf("engine halted: %v", ctx.fatal)
	return ctx.fatal
}

// Snapshot 当前状态的快照
// 说明：只能在Step所在协程调用，其他协程使用LatestSnapshot
func (ctx *Context) Snapshot() Snapshot {
	return ctx.snapshot()
}

// LatestSnapshot 最近一次发布的快照副本
func (ctx *Context) LatestSnapshot() Snapshot {
	ctx.latestMtx.RLock()
	defer ctx.latestMtx.RUnlock()
	return ctx.latest.Clone()
}

// PublishedClock 最近一次发布的步数与仿真时间
func (ctx *Context) PublishedClock() (int32, float64) {
	ctx.latestMtx.RLock()
	defer ctx.latestMtx.RUnlock()
	return ctx.latest.Tick, ctx.latest.T
}

func (ctx *Context) publish(snap Snapshot) {
	ctx.latestMtx.Lock()
	defer ctx.latestMtx.Unlock()
	ctx.latest = snap.Clone()
}

// Stop 请求Run在当前步完成后退出，可在任意协程调用
func (ctx *Context) Stop() {
	ctx.stopping.Store(true)
}

// Close 关闭sidecar与输出，可重复调用
// 说明：不能与Step并发调用，运行中请使用Stop
func (ctx *Context) Close() {
	if ctx.closed.Swap(true) {
		return
	}
	if ctx.recorder != nil {
		if err := ctx.recorder.Close(context.Background()); err != nil {
			log.Warnf("close recorder: %v", err)
		}
	}
	if ctx.publisher != nil {
		if err := ctx.publisher.Close(); err != nil {
			log.Warnf("close publisher: %v", err)
		}
	}
	if ctx.sidecar != nil {
		ctx.sidecar.Close()
		if ctx.serveSidecar {
			// wait for graceful stop
			<-ctx.sidecarCloseCh
		}
	}
}
