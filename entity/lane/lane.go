package lane

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/junction-sim/entity"
	"github.com/tsinghua-fib-lab/junction-sim/utils/container"
)

var (
	ErrLaneFull = errors.New("lane is full")
	ErrEmpty    = errors.New("lane is empty")
	ErrNotHead  = errors.New("vehicle is not at the head of lane")
)

// Lane 车道实体
// 功能：路口某一驶入方向上的排队队列，严格先进先出
// 说明：车辆同一时刻只属于一个容器，入队后归属车道，出队后交给路口仲裁器
type Lane struct {
	id       int32
	approach entity.Approach
	capacity int // 最大排队车辆数，0为不限

	vehicles container.List[*entity.Vehicle]
}

// NewLane 创建车道
// 参数：id-车道ID，approach-驶入方位，capacity-容量（0为不限）
func NewLane(id int32, approach entity.Approach, capacity int) *Lane {
	return &Lane{
		id:       id,
		approach: approach,
		capacity: capacity,
		vehicles: container.List[*entity.Vehicle]{ID: fmt.Sprintf("lane %d vehicles", id)},
	}
}

func (l *Lane) ID() int32 {
	return l.id
}

func (l *Lane) Approach() entity.Approach {
	return l.approach
}

// Capacity 车道容量，0为不限
func (l *Lane) Capacity() int {
	return l.capacity
}

// Length 当前排队长度
func (l *Lane) Length() int {
	return l.vehicles.Len()
}

// Full 容量有限且已满
func (l *Lane) Full() bool {
	return l.capacity > 0 && l.vehicles.Len() >= l.capacity
}

// Enqueue 车辆追加到队尾
// 返回：车道已满时返回ErrLaneFull，车辆状态不变
func (l *Lane) Enqueue(v *entity.Vehicle) error {
	if v.Lane != l.id {
		return fmt.Errorf("enqueue vehicle %d of lane %d into lane %d", v.ID, v.Lane, l.id)
	}
	if l.Full() {
		return fmt.Errorf("lane %d (capacity %d): %w", l.id, l.capacity, ErrLaneFull)
	}
	v.State = entity.STATE_QUEUED
	l.vehicles.PushBack(container.NewListNode(v))
	return nil
}

// Peek 队首车辆（不移除）
func (l *Lane) Peek() (*entity.Vehicle, error) {
	head := l.vehicles.First()
	if head == nil {
		return nil, ErrEmpty
	}
	return head.Value, nil
}

// DequeueIfAdmitted 仅当id为队首车辆时将其移出
// 说明：防止后到的车辆越过先到的车辆进入路口
func (l *Lane) DequeueIfAdmitted(vehicleID int32) (*entity.Vehicle, error) {
	head := l.vehicles.First()
	if head == nil {
		return nil, fmt.Errorf("lane %d dequeue vehicle %d: %w", l.id, vehicleID, ErrEmpty)
	}
	if head.Value.ID != vehicleID {
		return nil, fmt.Errorf("lane %d dequeue vehicle %d, head is %d: %w", l.id, vehicleID, head.Value.ID, ErrNotHead)
	}
	l.vehicles.Remove(head)
	return head.Value, nil
}

// Grow 有限容量加一，用于grow策略
func (l *Lane) Grow() {
	if l.capacity > 0 {
		l.capacity++
	}
}

// Pressure 车道压力：排队车辆优先级之和
func (l *Lane) Pressure() float64 {
	return float64(lo.SumBy(l.vehicles.Values(), func(v *entity.Vehicle) int {
		return v.Kind.Priority()
	}))
}

// Vehicles 按队列顺序返回排队车辆的副本
func (l *Lane) Vehicles() []entity.Vehicle {
	return lo.Map(l.vehicles.Values(), func(v *entity.Vehicle, _ int) entity.Vehicle {
		return *v
	})
}

func (l *Lane) String() string {
	return fmt.Sprintf("Lane{ID:%d, Approach:%v, Len:%d, Capacity:%d}", l.id, l.approach, l.Length(), l.capacity)
}
