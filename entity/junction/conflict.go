package junction

import (
	"fmt"
	"strings"

	"github.com/tsinghua-fib-lab/junction-sim/entity"
	"github.com/tsinghua-fib-lab/junction-sim/utils/config"
)

// pathPair 规范化后的路径对，a不大于b
type pathPair struct {
	a, b entity.Path
}

func lessPath(x, y entity.Path) bool {
	if x.Lane != y.Lane {
		return x.Lane < y.Lane
	}
	return x.Direction < y.Direction
}

func newPathPair(x, y entity.Path) pathPair {
	if lessPath(y, x) {
		x, y = y, x
	}
	return pathPair{a: x, b: y}
}

// ConflictMatrix 冲突矩阵
// 功能：声明哪些通行动作不能同时占用路口，关系对称
// 说明：运行期间不可变；同一路径与自身默认不冲突（同车道同转向的跟驰），除非显式声明
type ConflictMatrix struct {
	pairs map[pathPair]struct{}
}

// NewConflictMatrix 根据配置条目构建冲突矩阵
// 说明：转向为any时展开为全部转向
func NewConflictMatrix(cs []config.Conflict) (*ConflictMatrix, error) {
	m := &ConflictMatrix{pairs: make(map[pathPair]struct{})}
	for i, c := range cs {
		as, err := expandMovement(c.A)
		if err != nil {
			return nil, fmt.Errorf("conflict #%d: %w", i, err)
		}
		bs, err := expandMovement(c.B)
		if err != nil {
			return nil, fmt.Errorf("conflict #%d: %w", i, err)
		}
		for _, a := range as {
			for _, b := range bs {
				m.Add(a, b)
			}
		}
	}
	return m, nil
}

func expandMovement(mv config.Movement) ([]entity.Path, error) {
	if mv.Direction == "" || strings.EqualFold(mv.Direction, config.DIRECTION_ANY) {
		paths := make([]entity.Path, 0, len(entity.AllDirections))
		for _, d := range entity.AllDirections {
			paths = append(paths, entity.Path{Lane: mv.Lane, Direction: d})
		}
		return paths, nil
	}
	d, err := entity.ParseDirection(mv.Direction)
	if err != nil {
		return nil, err
	}
	return []entity.Path{{Lane: mv.Lane, Direction: d}}, nil
}

// Add 声明两条路径冲突（构建阶段使用）
func (m *ConflictMatrix) Add(a, b entity.Path) {
	m.pairs[newPathPair(a, b)] = struct{}{}
}

// Conflicts 两条路径能否同时占用路口
func (m *ConflictMatrix) Conflicts(a, b entity.Path) bool {
	_, ok := m.pairs[newPathPair(a, b)]
	return ok
}

// LanesConflict 两条车道是否存在任意一对冲突的转向
func (m *ConflictMatrix) LanesConflict(a, b int32) bool {
	for _, da := range entity.AllDirections {
		for _, db := range entity.AllDirections {
			if m.Conflicts(entity.Path{Lane: a, Direction: da}, entity.Path{Lane: b, Direction: db}) {
				return true
			}
		}
	}
	return false
}

// Len 冲突路径对的数量
func (m *ConflictMatrix) Len() int {
	return len(m.pairs)
}
