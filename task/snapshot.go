package task

import (
	"slices"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/junction-sim/entity/junction"
	"github.com/tsinghua-fib-lab/junction-sim/entity/lane"
)

// PhaseSnapshot 当前相位
type PhaseSnapshot struct {
	Index     int    `json:"index"` // 清空相位为-1
	Name      string `json:"name"`
	Remaining int32  `json:"remaining"`
}

// LaneSnapshot 单条车道的状态
type LaneSnapshot struct {
	ID          int32            `json:"id"`
	Approach    string           `json:"approach"`
	QueueLength int              `json:"queue_length"`
	Capacity    int              `json:"capacity"` // 0为不限
	Signal      mapv2.LightState `json:"signal"`
	Admitted    int64            `json:"admitted"`
	AvgWait     float64          `json:"avg_wait"` // 已放行车辆的平均等待步数
}

// TransitSnapshot 路口内的一辆车
type TransitSnapshot struct {
	VehicleID int32  `json:"vehicle_id"`
	Lane      int32  `json:"lane"`
	Direction string `json:"direction"`
	Kind      string `json:"kind"`
	EntryTick int32  `json:"entry_tick"`
	ExitTick  int32  `json:"exit_tick"`
}

// Stats 累计统计
type Stats struct {
	Admitted  int64   `json:"admitted"`
	Completed int64   `json:"completed"`
	Blocked   int64   `json:"blocked"` // 因车道满未能入队的到达数（reject与block策略，每辆车只计一次）
	Dropped   int64   `json:"dropped"` // 其中reject策略下被丢弃的车辆数
	AvgWait   float64 `json:"avg_wait"`
}

// Snapshot 一步完成后的只读状态副本
type Snapshot struct {
	Tick         int32             `json:"tick"`
	T            float64           `json:"t"`
	Time         string            `json:"time"` // HH:MM:SS
	Phase        PhaseSnapshot     `json:"phase"`
	GrantedLanes []int32           `json:"granted_lanes"`
	Lanes        []LaneSnapshot    `json:"lanes"`
	InTransit    []TransitSnapshot `json:"in_transit"`
	Stats        Stats             `json:"stats"`
}

// Clone 深拷贝，调用方可以随意修改返回值
func (s Snapshot) Clone() Snapshot {
	s.GrantedLanes = slices.Clone(s.GrantedLanes)
	s.Lanes = slices.Clone(s.Lanes)
	s.InTransit = slices.Clone(s.InTransit)
	return s
}

// Lane 按ID查找车道状态
func (s Snapshot) Lane(id int32) (LaneSnapshot, bool) {
	return lo.Find(s.Lanes, func(l LaneSnapshot) bool { return l.ID == id })
}

// laneStats 单条车道的等待统计
type laneStats struct {
	admitted int64
	waitSum  int64
}

func (s laneStats) avgWait() float64 {
	if s.admitted == 0 {
		return 0
	}
	return float64(s.waitSum) / float64(s.admitted)
}

// snapshot 由当前状态生成快照
func (ctx *Context) snapshot() Snapshot {
	granted := ctx.light.GrantedLanes()
	active := ctx.light.Active()
	var waitSum int64
	lanes := lo.Map(ctx.laneManager.Lanes(), func(l *lane.Lane, _ int) LaneSnapshot {
		st := ctx.laneStats[l.ID()]
		waitSum += st.waitSum
		signal := mapv2.LightState_LIGHT_STATE_RED
		if active.Grants(l.ID()) {
			signal = mapv2.LightState_LIGHT_STATE_GREEN
		}
		return LaneSnapshot{
			ID:          l.ID(),
			Approach:    l.Approach().String(),
			QueueLength: l.Length(),
			Capacity:    l.Capacity(),
			Signal:      signal,
			Admitted:    st.admitted,
			AvgWait:     st.avgWait(),
		}
	})
	stats := ctx.stats
	if stats.Admitted > 0 {
		stats.AvgWait = float64(waitSum) / float64(stats.Admitted)
	}
	return Snapshot{
		Tick: ctx.clock.Current(),
		T:    ctx.clock.T(),
		Time: ctx.clock.String(),
		Phase: PhaseSnapshot{
			Index:     ctx.light.PhaseIndex(),
			Name:      active.Name,
			Remaining: ctx.light.Remaining(),
		},
		GrantedLanes: granted,
		Lanes:        lanes,
		InTransit: lo.Map(ctx.arbiter.InTransit(), func(t junction.Transit, _ int) TransitSnapshot {
			return TransitSnapshot{
				VehicleID: t.Vehicle.ID,
				Lane:      t.Path.Lane,
				Direction: t.Path.Direction.String(),
				Kind:      t.Vehicle.Kind.String(),
				EntryTick: t.EntryTick,
				ExitTick:  t.ExitTick,
			}
		}),
		Stats: stats,
	}
}
