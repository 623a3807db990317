package trafficlight

import (
	"slices"
)

// localTrafficLight 固定周期信号灯控制器
// 功能：按配置顺序循环相位，剩余步数归零时切换到下一相位并重置为其持续步数
type localTrafficLight struct {
	phases    []Phase
	step      int   // 当前相位下标
	remaining int32 // 当前相位剩余步数
}

// NewLocalTrafficLight 创建固定周期信号灯控制器
// 参数：phases-经NewPhases校验的相位周期
// 说明：初始为第0相位，剩余步数为其持续步数
func NewLocalTrafficLight(phases []Phase) *localTrafficLight {
	if len(phases) == 0 {
		log.Panic("local traffic light without phases")
	}
	return &localTrafficLight{
		phases:    phases,
		step:      0,
		remaining: phases[0].Duration,
	}
}

// Tick 推进一步
// 算法说明：剩余步数减一，归零时切换到下一相位（循环），剩余步数重置为新相位的持续步数
func (l *localTrafficLight) Tick() Phase {
	l.remaining--
	if l.remaining <= 0 {
		l.step = (l.step + 1) % len(l.phases)
		l.remaining = l.phases[l.step].Duration
		log.Debugf("switch to phase %d %q for %d ticks", l.step, l.phases[l.step].Name, l.remaining)
	}
	return l.phases[l.step]
}

func (l *localTrafficLight) Active() Phase {
	return l.phases[l.step]
}

func (l *localTrafficLight) PhaseIndex() int {
	return l.step
}

func (l *localTrafficLight) Remaining() int32 {
	return l.remaining
}

func (l *localTrafficLight) GrantedLanes() []int32 {
	return slices.Clone(l.phases[l.step].Lanes)
}

func (l *localTrafficLight) Granted(laneID int32) bool {
	return l.phases[l.step].Grants(laneID)
}
