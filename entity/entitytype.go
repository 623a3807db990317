package entity

import (
	"fmt"
	"strings"
)

// Approach 车道的驶入方位
type Approach int32

const (
	APPROACH_NORTH Approach = iota
	APPROACH_SOUTH
	APPROACH_EAST
	APPROACH_WEST
)

func (a Approach) String() string {
	switch a {
	case APPROACH_NORTH:
		return "north"
	case APPROACH_SOUTH:
		return "south"
	case APPROACH_EAST:
		return "east"
	case APPROACH_WEST:
		return "west"
	default:
		return fmt.Sprintf("approach(%d)", int32(a))
	}
}

// ParseApproach 从配置字符串解析驶入方位
func ParseApproach(s string) (Approach, error) {
	switch strings.ToLower(s) {
	case "north", "n":
		return APPROACH_NORTH, nil
	case "south", "s":
		return APPROACH_SOUTH, nil
	case "east", "e":
		return APPROACH_EAST, nil
	case "west", "w":
		return APPROACH_WEST, nil
	default:
		return 0, fmt.Errorf("unknown approach %q", s)
	}
}

// Direction 车辆在路口内请求的转向
type Direction int32

const (
	DIRECTION_STRAIGHT Direction = iota
	DIRECTION_LEFT
	DIRECTION_RIGHT
	DIRECTION_UTURN
)

// AllDirections 全部转向，按枚举顺序
var AllDirections = []Direction{DIRECTION_STRAIGHT, DIRECTION_LEFT, DIRECTION_RIGHT, DIRECTION_UTURN}

func (d Direction) String() string {
	switch d {
	case DIRECTION_STRAIGHT:
		return "straight"
	case DIRECTION_LEFT:
		return "left"
	case DIRECTION_RIGHT:
		return "right"
	case DIRECTION_UTURN:
		return "uturn"
	default:
		return fmt.Sprintf("direction(%d)", int32(d))
	}
}

// ParseDirection 从配置字符串解析转向
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "straight":
		return DIRECTION_STRAIGHT, nil
	case "left":
		return DIRECTION_LEFT, nil
	case "right":
		return DIRECTION_RIGHT, nil
	case "uturn", "u_turn":
		return DIRECTION_UTURN, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// VehicleKind 车辆类型
// 说明：优先级用于最大压力信控计算车道压力，速度倍率用于计算通过路口所需的步数
type VehicleKind int32

const (
	KIND_NORMAL VehicleKind = iota
	KIND_EMERGENCY
	KIND_PUBLIC_TRANSPORT
	KIND_HEAVY
)

// AllKinds 全部车辆类型，按枚举顺序
var AllKinds = []VehicleKind{KIND_NORMAL, KIND_EMERGENCY, KIND_PUBLIC_TRANSPORT, KIND_HEAVY}

func (k VehicleKind) String() string {
	switch k {
	case KIND_NORMAL:
		return "normal"
	case KIND_EMERGENCY:
		return "emergency"
	case KIND_PUBLIC_TRANSPORT:
		return "public_transport"
	case KIND_HEAVY:
		return "heavy"
	default:
		return fmt.Sprintf("kind(%d)", int32(k))
	}
}

// ParseVehicleKind 从配置字符串解析车辆类型
func ParseVehicleKind(s string) (VehicleKind, error) {
	switch strings.ToLower(s) {
	case "normal":
		return KIND_NORMAL, nil
	case "emergency":
		return KIND_EMERGENCY, nil
	case "public_transport", "bus":
		return KIND_PUBLIC_TRANSPORT, nil
	case "heavy":
		return KIND_HEAVY, nil
	default:
		return 0, fmt.Errorf("unknown vehicle kind %q", s)
	}
}

// Priority 车辆优先级（越大越优先）
func (k VehicleKind) Priority() int {
	switch k {
	case KIND_EMERGENCY:
		return 10
	case KIND_PUBLIC_TRANSPORT:
		return 5
	case KIND_HEAVY:
		return 2
	default:
		return 1
	}
}

// SpeedMultiplier 车辆通过路口的速度倍率（以0.1为单位）
func (k VehicleKind) SpeedMultiplier() int32 {
	switch k {
	case KIND_EMERGENCY:
		return 15
	case KIND_PUBLIC_TRANSPORT:
		return 8
	case KIND_HEAVY:
		return 6
	default:
		return 10
	}
}

// CrossingTicks 按车辆类型换算通过路口所需步数
// 说明：步数为ceil(base/速度倍率)，至少为1
func (k VehicleKind) CrossingTicks(base int32) int32 {
	speed := k.SpeedMultiplier()
	ticks := (base*10 + speed - 1) / speed
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// VehicleState 车辆生命周期状态
type VehicleState int32

const (
	STATE_QUEUED VehicleState = iota
	STATE_IN_TRANSIT
	STATE_COMPLETED
)

func (s VehicleState) String() string {
	switch s {
	case STATE_QUEUED:
		return "queued"
	case STATE_IN_TRANSIT:
		return "in_transit"
	case STATE_COMPLETED:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Path 车辆在路口内占用的路径（驶入车道×转向）
type Path struct {
	Lane      int32
	Direction Direction
}

func (p Path) String() string {
	return fmt.Sprintf("%d/%v", p.Lane, p.Direction)
}

// Vehicle 车辆
// 说明：排队时归属车道，进入路口后归属仲裁器的在途集合，完成后只读
type Vehicle struct {
	ID          int32
	Lane        int32
	Direction   Direction
	Kind        VehicleKind
	State       VehicleState
	ArrivalTick int32
	EntryTick   int32
	ExitTick    int32
}

// Path 车辆请求占用的路径
func (v *Vehicle) Path() Path {
	return Path{Lane: v.Lane, Direction: v.Direction}
}

// Wait 排队等待的步数（未进入路口时返回-1）
func (v *Vehicle) Wait() int32 {
	if v.State == STATE_QUEUED {
		return -1
	}
	return v.EntryTick - v.ArrivalTick
}

func (v *Vehicle) String() string {
	return fmt.Sprintf(
		"Vehicle{ID:%d, Lane:%d, Dir:%v, Kind:%v, State:%v, Arrival:%d}",
		v.ID, v.Lane, v.Direction, v.Kind, v.State, v.ArrivalTick,
	)
}
