package task

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/junction-sim/entity"
	"github.com/tsinghua-fib-lab/junction-sim/utils/config"
	"github.com/tsinghua-fib-lab/junction-sim/utils/randengine"
)

var (
	defaultDirectionWeights = map[string]float64{"straight": 2, "left": 1, "right": 1}
	defaultKindWeights      = map[string]float64{"normal": 1}
)

// arrival 一次待入队的车辆到达
type arrival struct {
	id        int32
	lane      int32
	direction entity.Direction
	kind      entity.VehicleKind
	blocked   bool // 已因车道满被推迟过
}

// arrivalGenerator 随机到达生成器
// 功能：每步对每条车道（按ID升序）以rate的概率生成一辆车，转向与类型按权重抽样
// 说明：种子固定时生成序列完全确定
type arrivalGenerator struct {
	engine *randengine.Engine
	rate   float64
	lanes  []int32

	directionWeights []float64 // 按entity.AllDirections下标
	kindWeights      []float64 // 按entity.AllKinds下标
}

// newArrivalGenerator 根据配置创建到达生成器
// 参数：c-到达配置，lanes-车道ID（升序）
// 返回：权重名称无法解析或权重和为0时返回错误
func newArrivalGenerator(c config.Arrival, lanes []int32) (*arrivalGenerator, error) {
	dirs := c.Directions
	if len(dirs) == 0 {
		dirs = defaultDirectionWeights
	}
	directionWeights, err := parseWeights(dirs, len(entity.AllDirections), func(s string) (int, error) {
		d, err := entity.ParseDirection(s)
		return int(d), err
	})
	if err != nil {
		return nil, fmt.Errorf("arrival.directions: %w", err)
	}
	kinds := c.Kinds
	if len(kinds) == 0 {
		kinds = defaultKindWeights
	}
	kindWeights, err := parseWeights(kinds, len(entity.AllKinds), func(s string) (int, error) {
		k, err := entity.ParseVehicleKind(s)
		return int(k), err
	})
	if err != nil {
		return nil, fmt.Errorf("arrival.kinds: %w", err)
	}
	return &arrivalGenerator{
		engine:           randengine.New(c.Seed),
		rate:             c.Rate,
		lanes:            lanes,
		directionWeights: directionWeights,
		kindWeights:      kindWeights,
	}, nil
}

// parseWeights 将名称到权重的映射转换为按枚举下标排列的权重数组
func parseWeights(named map[string]float64, n int, parse func(string) (int, error)) ([]float64, error) {
	weights := make([]float64, n)
	for name, w := range named {
		i, err := parse(name)
		if err != nil {
			return nil, err
		}
		weights[i] += w
	}
	if lo.Sum(weights) <= 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", config.ErrInvalidConfig)
	}
	return weights, nil
}

// Generate 生成本步的到达，按车道ID升序
// 参数：held-返回true的车道本步不生成到达（block策略下的反压）
func (g *arrivalGenerator) Generate(held func(laneID int32) bool) []arrival {
	out := make([]arrival, 0)
	for _, id := range g.lanes {
		if held != nil && held(id) {
			continue
		}
		if !g.engine.PTrue(g.rate) {
			continue
		}
		out = append(out, arrival{
			lane:      id,
			direction: entity.AllDirections[g.engine.DiscreteDistribution(g.directionWeights)],
			kind:      entity.AllKinds[g.engine.DiscreteDistribution(g.kindWeights)],
		})
	}
	return out
}
