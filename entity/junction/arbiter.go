package junction

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/junction-sim/entity"
	"github.com/tsinghua-fib-lab/junction-sim/entity/lane"
)

// Transit 在途集合中的一项
type Transit struct {
	Vehicle   *entity.Vehicle
	EntryTick int32
	ExitTick  int32
	Path      entity.Path
}

// Arbiter 路口仲裁器
// 功能：每一步先释放到达出口步的车辆，再按车道ID顺序尝试放行各绿灯车道的队首车辆
// 说明：在途集合中任意两辆车的路径都不冲突；释放先于放行，本步空出的路径本步即可被占用
type Arbiter struct {
	conflicts     *ConflictMatrix
	crossingTicks int32

	inTransit []*Transit // 按进入顺序
}

// NewArbiter 创建路口仲裁器
// 参数：conflicts-冲突矩阵，crossingTicks-普通车辆通过路口所需步数（至少为1）
func NewArbiter(conflicts *ConflictMatrix, crossingTicks int32) *Arbiter {
	if crossingTicks < 1 {
		log.Panicf("crossing ticks must be >= 1, got %d", crossingTicks)
	}
	return &Arbiter{
		conflicts:     conflicts,
		crossingTicks: crossingTicks,
		inTransit:     make([]*Transit, 0),
	}
}

// ReleaseCompleted 释放出口步已到的车辆
// 返回：按进入顺序排列的已完成车辆
func (a *Arbiter) ReleaseCompleted(now int32) []*entity.Vehicle {
	done, remain := lo.FilterReject(a.inTransit, func(t *Transit, _ int) bool {
		return t.ExitTick <= now
	})
	a.inTransit = remain
	return lo.Map(done, func(t *Transit, _ int) *entity.Vehicle {
		t.Vehicle.State = entity.STATE_COMPLETED
		return t.Vehicle
	})
}

// TryAdmit 尝试放行车道队首车辆
// 返回：放行的车辆；车道为空或路径冲突时返回nil且不改变任何状态
// 说明：车道出队失败属于调用顺序错误，作为致命错误返回
func (a *Arbiter) TryAdmit(now int32, l *lane.Lane) (*entity.Vehicle, error) {
	head, err := l.Peek()
	if err != nil {
		// 空车道
		return nil, nil
	}
	path := head.Path()
	if blocker, ok := a.blockedBy(path); ok {
		log.Debugf("tick %d: vehicle %d on %v waits for vehicle %d on %v", now, head.ID, path, blocker.Vehicle.ID, blocker.Path)
		return nil, nil
	}
	v, err := l.DequeueIfAdmitted(head.ID)
	if err != nil {
		return nil, fmt.Errorf("admit vehicle %d: %w", head.ID, err)
	}
	v.State = entity.STATE_IN_TRANSIT
	v.EntryTick = now
	v.ExitTick = now + v.Kind.CrossingTicks(a.crossingTicks)
	a.inTransit = append(a.inTransit, &Transit{
		Vehicle:   v,
		EntryTick: v.EntryTick,
		ExitTick:  v.ExitTick,
		Path:      path,
	})
	return v, nil
}

// blockedBy 找到第一个与给定路径冲突的在途车辆
func (a *Arbiter) blockedBy(path entity.Path) (*Transit, bool) {
	return lo.Find(a.inTransit, func(t *Transit) bool {
		return a.conflicts.Conflicts(path, t.Path)
	})
}

// Verify 检查在途集合中不存在冲突车辆
func (a *Arbiter) Verify(now int32) error {
	for i, x := range a.inTransit {
		for _, y := range a.inTransit[i+1:] {
			if a.conflicts.Conflicts(x.Path, y.Path) {
				return &ConflictViolationError{
					Tick:     now,
					VehicleA: x.Vehicle.ID,
					PathA:    x.Path,
					VehicleB: y.Vehicle.ID,
					PathB:    y.Path,
				}
			}
		}
	}
	return nil
}

// InTransit 在途集合的副本，按进入顺序
func (a *Arbiter) InTransit() []Transit {
	return lo.Map(a.inTransit, func(t *Transit, _ int) Transit {
		v := *t.Vehicle
		return Transit{Vehicle: &v, EntryTick: t.EntryTick, ExitTick: t.ExitTick, Path: t.Path}
	})
}

// Len 在途车辆数
func (a *Arbiter) Len() int {
	return len(a.inTransit)
}

// CrossingTicks 普通车辆通过路口所需步数
func (a *Arbiter) CrossingTicks() int32 {
	return a.crossingTicks
}
