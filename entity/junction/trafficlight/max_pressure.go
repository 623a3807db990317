// 提供Max Pressure信号灯控制算法
// 不会按照原来的相位顺序切换，而是在每个相位结束后计算所有相位的pressure，选取pressure最大的相位
package trafficlight

import (
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/junction-sim/utils/container"
)

const (
	clearancePhaseName = "clearance"
)

// mpTrafficLight 最大压力信号灯控制器
// 功能：相位到期时按各相位放行车道的压力之和重新选择相位
// 说明：同一相位最多连续重复maxRepeat次，之后切换到压力第二大的相位；
// 相位切换时可插入clearanceTicks步的全红相位
type mpTrafficLight struct {
	phases         []Phase
	lanes          map[int32]ILanePressure
	maxRepeat      int
	clearanceTicks int32

	index       int   // 当前相位
	repeatCount int   // 当前相位重复的次数
	remaining   int32 // 当前相位剩余步数
	clearing    bool  // 是否处于全红清空相位
	nextIndex   int   // 清空相位后的下一个相位
}

// NewMaxPressureTrafficLight 创建Max Pressure算法信号灯控制器
// 参数：phases-经NewPhases校验的可选相位，lanes-车道压力来源，maxRepeat-最大重复次数，clearanceTicks-全红步数
func NewMaxPressureTrafficLight(phases []Phase, lanes []ILanePressure, maxRepeat int, clearanceTicks int32) *mpTrafficLight {
	if len(phases) == 0 {
		log.Panic("max pressure traffic light without phases")
	}
	if maxRepeat < 1 {
		maxRepeat = 1
	}
	return &mpTrafficLight{
		phases: phases,
		lanes: lo.SliceToMap(lanes, func(l ILanePressure) (int32, ILanePressure) {
			return l.ID(), l
		}),
		maxRepeat:      maxRepeat,
		clearanceTicks: clearanceTicks,
		index:          0,
		repeatCount:    1,
		remaining:      phases[0].Duration,
	}
}

// Tick 推进一步
// 算法说明：
// 1. 剩余步数未归零则保持当前相位
// 2. 清空相位结束后进入预选的下一相位
// 3. 否则为每个相位计算放行车道压力之和，选择压力最大的相位（相同压力取下标小的）
// 4. 最大压力相位即当前相位且未达到最大重复次数时延长当前相位，否则切换到第二大压力的相位
func (l *mpTrafficLight) Tick() Phase {
	l.remaining--
	if l.remaining > 0 {
		return l.Active()
	}
	if l.clearing {
		l.clearing = false
		l.index = l.nextIndex
		l.remaining = l.phases[l.index].Duration
		return l.Active()
	}

	pressureHeap := container.NewPriorityQueue[int]()
	for i, phase := range l.phases {
		pressure := lo.SumBy(phase.Lanes, func(id int32) float64 {
			if lane, ok := l.lanes[id]; ok {
				return lane.Pressure()
			}
			return 0
		})
		pressureHeap.Push(i, -pressure) // 小顶堆，压力越大越靠前
	}
	pressureHeap.Heapify()
	maxIndex, _ := pressureHeap.HeapPop()
	if maxIndex == l.index {
		if l.repeatCount >= l.maxRepeat && pressureHeap.Len() > 0 {
			// 达到最大延时次数，切换到第二大压力的相位
			maxIndex, _ = pressureHeap.HeapPop()
		} else {
			l.remaining = l.phases[l.index].Duration
			l.repeatCount++
			return l.Active()
		}
	}

	log.Debugf("max pressure switch phase %d -> %d", l.index, maxIndex)
	l.repeatCount = 1
	if l.clearanceTicks > 0 {
		l.clearing = true
		l.nextIndex = maxIndex
		l.remaining = l.clearanceTicks
	} else {
		l.index = maxIndex
		l.remaining = l.phases[l.index].Duration
	}
	return l.Active()
}

func (l *mpTrafficLight) Active() Phase {
	if l.clearing {
		return Phase{Name: clearancePhaseName, Lanes: []int32{}, Duration: l.clearanceTicks}
	}
	return l.phases[l.index]
}

// PhaseIndex 当前相位下标，清空相位返回-1
func (l *mpTrafficLight) PhaseIndex() int {
	if l.clearing {
		return -1
	}
	return l.index
}

func (l *mpTrafficLight) Remaining() int32 {
	return l.remaining
}

func (l *mpTrafficLight) GrantedLanes() []int32 {
	return slices.Clone(l.Active().Lanes)
}

func (l *mpTrafficLight) Granted(laneID int32) bool {
	return l.Active().Grants(laneID)
}
