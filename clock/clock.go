package clock

import (
	"fmt"

	"github.com/tsinghua-fib-lab/junction-sim/utils/config"
)

// Clock 仿真时钟
// 功能：维护单调递增的步数计数器，并换算为仿真时间
// 说明：步数只能通过Advance每次加一，运行期间不会回退或重置
type Clock struct {
	DT         float64 // 每步对应的仿真时间（秒）
	START_STEP int32   // 起始步
	END_STEP   int32   // 结束步，模拟区间[START, END)

	step int32 // 当前步数
}

// New 根据配置创建新的时钟实例
// 参数：stepConfig-控制步配置
// 返回：当前步为起始步的时钟
func New(stepConfig config.ControlStep) *Clock {
	return &Clock{
		DT:         stepConfig.Interval,
		START_STEP: stepConfig.Start,
		END_STEP:   stepConfig.Start + stepConfig.Total,
		step:       stepConfig.Start,
	}
}

// Advance 步数加一并返回新的步数
func (c *Clock) Advance() int32 {
	c.step++
	return c.step
}

// Current 当前步数
func (c *Clock) Current() int32 {
	return c.step
}

// T 当前仿真时间（秒）
func (c *Clock) T() float64 {
	return float64(c.step) * c.DT
}

// Finished 当前步是否已是模拟区间的最后一步
func (c *Clock) Finished() bool {
	return c.step+1 >= c.END_STEP
}

// String 将当前时间格式化为HH:MM:SS
func (c *Clock) String() string {
	hour, minute, second := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", hour, minute, int(second))
}

// GetHourMinuteSecond 获取当前时间的小时、分钟、秒
// 返回：小时、分钟、秒（秒为浮点数，支持亚秒级精度）
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	t := c.T()
	hour := int(t) / 3600
	minute := int(t) % 3600 / 60
	second := t - float64(hour*3600+minute*60)
	return hour, minute, second
}
