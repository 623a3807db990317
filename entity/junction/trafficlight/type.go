package trafficlight

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/junction-sim/utils/config"
)

var (
	ErrInvalidPhase = errors.New("invalid phase")
)

// Phase 相位：同时获得通行权的车道集合及持续步数
// 说明：车道为空的相位即全红清空相位
type Phase struct {
	Name       string
	Lanes      []int32 // 升序
	Duration   int32
	Permissive bool
}

// Grants 相位是否放行指定车道
func (p Phase) Grants(laneID int32) bool {
	_, ok := slices.BinarySearch(p.Lanes, laneID)
	return ok
}

// 依赖倒置，表达信控对车道与冲突矩阵的接口需求

// ILaneConflicts 车道级冲突查询
type ILaneConflicts interface {
	LanesConflict(a, b int32) bool
}

// ILanePressure 最大压力信控读取的车道视图
type ILanePressure interface {
	ID() int32
	Pressure() float64
}

// ITrafficLight 信号灯接口
// 说明：Tick是唯一的修改入口，每步调用一次
type ITrafficLight interface {
	Tick() Phase           // 推进一步，返回推进后的当前相位
	Active() Phase         // 当前相位
	PhaseIndex() int       // 当前相位在周期中的下标，清空相位返回-1
	Remaining() int32      // 当前相位剩余步数
	GrantedLanes() []int32 // 当前放行的车道（升序副本）
	Granted(laneID int32) bool
}

// NewPhases 校验相位配置并转换为运行时相位
// 参数：cs-相位配置，hasLane-车道存在性查询，conflicts-车道级冲突查询
// 返回：校验失败时返回包装ErrInvalidPhase的错误
func NewPhases(cs []config.Phase, hasLane func(int32) bool, conflicts ILaneConflicts) ([]Phase, error) {
	if len(cs) == 0 {
		return nil, fmt.Errorf("%w: empty phase cycle", ErrInvalidPhase)
	}
	phases := make([]Phase, 0, len(cs))
	for i, c := range cs {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("phase-%d", i)
		}
		if c.Duration <= 0 {
			return nil, fmt.Errorf("%w: phase %q has non-positive duration %d", ErrInvalidPhase, name, c.Duration)
		}
		if dup := lo.FindDuplicates(c.Lanes); len(dup) > 0 {
			return nil, fmt.Errorf("%w: phase %q grants lane %d twice", ErrInvalidPhase, name, dup[0])
		}
		for _, id := range c.Lanes {
			if !hasLane(id) {
				return nil, fmt.Errorf("%w: phase %q grants unknown lane %d", ErrInvalidPhase, name, id)
			}
		}
		lanes := slices.Clone(c.Lanes)
		slices.Sort(lanes)
		if !c.Permissive {
			for i, a := range lanes {
				for _, b := range lanes[i+1:] {
					if conflicts.LanesConflict(a, b) {
						return nil, fmt.Errorf(
							"%w: phase %q grants conflicting lanes %d and %d without permissive",
							ErrInvalidPhase, name, a, b,
						)
					}
				}
			}
		}
		phases = append(phases, Phase{
			Name:       name,
			Lanes:      lanes,
			Duration:   c.Duration,
			Permissive: c.Permissive,
		})
	}
	return phases, nil
}

// UngrantedLanes 从未被任何相位放行的车道
func UngrantedLanes(phases []Phase, laneIDs []int32) []int32 {
	return lo.Filter(laneIDs, func(id int32, _ int) bool {
		return !lo.ContainsBy(phases, func(p Phase) bool { return p.Grants(id) })
	})
}
