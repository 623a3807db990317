package lane

import (
	"cmp"
	"fmt"
	"slices"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/junction-sim/entity"
	"github.com/tsinghua-fib-lab/junction-sim/utils/config"
)

// LaneManager Lane管理器
// 功能：根据配置创建全部车道，提供按ID查找和按ID升序遍历
type LaneManager struct {
	data  map[int32]*Lane
	lanes []*Lane // 按ID升序
}

// NewManager 创建Lane管理器实例
func NewManager() *LaneManager {
	return &LaneManager{
		data:  make(map[int32]*Lane),
		lanes: make([]*Lane, 0),
	}
}

// Init 根据配置初始化所有Lane
// 返回：驶入方位无法解析时返回错误
func (m *LaneManager) Init(cs []config.Lane) error {
	type result struct {
		lane *Lane
		err  error
	}
	results := parallel.GoMap(cs, func(c config.Lane) result {
		approach, err := entity.ParseApproach(c.Approach)
		if err != nil {
			return result{err: fmt.Errorf("lane %d: %w", c.ID, err)}
		}
		return result{lane: NewLane(c.ID, approach, c.Capacity)}
	})
	for _, r := range results {
		if r.err != nil {
			return r.err
		}
	}
	m.lanes = lo.Map(results, func(r result, _ int) *Lane { return r.lane })
	slices.SortFunc(m.lanes, func(a, b *Lane) int { return cmp.Compare(a.id, b.id) })
	m.data = lo.SliceToMap(m.lanes, func(l *Lane) (int32, *Lane) {
		return l.id, l
	})
	return nil
}

// Get 根据ID获取Lane实例，如果不存在则panic
func (m *LaneManager) Get(id int32) *Lane {
	if lane, ok := m.data[id]; !ok {
		log.Panicf("no id %d in lane data", id)
		return nil
	} else {
		return lane
	}
}

// GetOrError 根据ID获取Lane实例，如果不存在则返回错误
func (m *LaneManager) GetOrError(id int32) (*Lane, error) {
	if lane, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in lane data", id)
	} else {
		return lane, nil
	}
}

// Has 判断车道是否存在
func (m *LaneManager) Has(id int32) bool {
	_, ok := m.data[id]
	return ok
}

// Lanes 全部车道，按ID升序
func (m *LaneManager) Lanes() []*Lane {
	return m.lanes
}

// IDs 全部车道ID，按升序
func (m *LaneManager) IDs() []int32 {
	return lo.Map(m.lanes, func(l *Lane, _ int) int32 { return l.id })
}
