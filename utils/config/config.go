package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

const (
	CONTROLLER_FIXED        = "fixed"
	CONTROLLER_MAX_PRESSURE = "max_pressure"

	POLICY_REJECT = "reject" // 丢弃到达车辆并计数
	POLICY_BLOCK  = "block"  // 到达车辆留在生成端，下一步重试
	POLICY_GROW   = "grow"   // 车道容量加一后入队

	DIRECTION_ANY = "any"

	defaultMaxRepeat = 6
)

var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Load 从YAML字节解析配置，填充默认值并校验
func Load(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile 从文件读取配置
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Load(data)
}

// SetDefaults 填充可省略项
func (c *Config) SetDefaults() {
	if c.Control.Step.Interval == 0 {
		c.Control.Step.Interval = 1
	}
	if c.Control.Controller == "" {
		c.Control.Controller = CONTROLLER_FIXED
	}
	if c.Control.FullPolicy == "" {
		c.Control.FullPolicy = POLICY_REJECT
	}
	if c.Control.MaxPressure.MaxRepeat == 0 {
		c.Control.MaxPressure.MaxRepeat = defaultMaxRepeat
	}
}

// Validate 校验与相位无关的配置项
// 说明：相位与冲突矩阵的一致性由信控模块在构造时校验
func (c *Config) Validate() error {
	if c.Control.Step.Total <= 0 {
		return fmt.Errorf("%w: control.step.total must be positive, got %d", ErrInvalidConfig, c.Control.Step.Total)
	}
	if c.Control.Step.Interval <= 0 {
		return fmt.Errorf("%w: control.step.interval must be positive", ErrInvalidConfig)
	}
	if c.Control.CrossingTicks < 1 {
		return fmt.Errorf("%w: control.crossing_ticks must be >= 1, got %d", ErrInvalidConfig, c.Control.CrossingTicks)
	}
	switch c.Control.Controller {
	case CONTROLLER_FIXED, CONTROLLER_MAX_PRESSURE:
	default:
		return fmt.Errorf("%w: unknown controller %q", ErrInvalidConfig, c.Control.Controller)
	}
	switch c.Control.FullPolicy {
	case POLICY_REJECT, POLICY_BLOCK, POLICY_GROW:
	default:
		return fmt.Errorf("%w: unknown full_policy %q", ErrInvalidConfig, c.Control.FullPolicy)
	}
	if c.Control.MaxPressure.MaxRepeat < 1 || c.Control.MaxPressure.ClearanceTicks < 0 {
		return fmt.Errorf("%w: bad max_pressure parameters %+v", ErrInvalidConfig, c.Control.MaxPressure)
	}
	if len(c.Lanes) == 0 {
		return fmt.Errorf("%w: no lanes", ErrInvalidConfig)
	}
	ids := make(map[int32]struct{}, len(c.Lanes))
	for _, l := range c.Lanes {
		if _, ok := ids[l.ID]; ok {
			return fmt.Errorf("%w: duplicate lane id %d", ErrInvalidConfig, l.ID)
		}
		ids[l.ID] = struct{}{}
		if l.Capacity < 0 {
			return fmt.Errorf("%w: lane %d has negative capacity", ErrInvalidConfig, l.ID)
		}
	}
	for _, conflict := range c.Conflicts {
		for _, m := range []Movement{conflict.A, conflict.B} {
			if _, ok := ids[m.Lane]; !ok {
				return fmt.Errorf("%w: conflict refers to unknown lane %d", ErrInvalidConfig, m.Lane)
			}
		}
	}
	if c.Arrival.Rate < 0 || c.Arrival.Rate > 1 {
		return fmt.Errorf("%w: arrival.rate must be in [0, 1], got %f", ErrInvalidConfig, c.Arrival.Rate)
	}
	for name, w := range c.Arrival.Directions {
		if w < 0 {
			return fmt.Errorf("%w: negative weight for direction %q", ErrInvalidConfig, name)
		}
	}
	for name, w := range c.Arrival.Kinds {
		if w < 0 {
			return fmt.Errorf("%w: negative weight for kind %q", ErrInvalidConfig, name)
		}
	}
	return nil
}
