package config

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// MaxPressure 最大压力信控参数
type MaxPressure struct {
	MaxRepeat      int   `yaml:"max_repeat,omitempty"`      // 每个相位最多连续重复的次数
	ClearanceTicks int32 `yaml:"clearance_ticks,omitempty"` // 相位切换间插入的全红步数，0为不插入
}

// Control 模拟器控制配置
type Control struct {
	Step          ControlStep `yaml:"step"`
	CrossingTicks int32       `yaml:"crossing_ticks"`         // 车辆通过路口所需步数
	Controller    string      `yaml:"controller,omitempty"`   // 信控类型：fixed|max_pressure
	FullPolicy    string      `yaml:"full_policy,omitempty"`  // 车道满时的到达处理：reject|block|grow
	MaxPressure   MaxPressure `yaml:"max_pressure,omitempty"` // 最大压力信控参数
}

// Lane 车道配置
type Lane struct {
	ID       int32  `yaml:"id"`
	Approach string `yaml:"approach"`           // north|south|east|west
	Capacity int    `yaml:"capacity,omitempty"` // 最大排队车辆数，0为不限
}

// Movement 冲突矩阵中的一个通行动作
type Movement struct {
	Lane      int32  `yaml:"lane"`
	Direction string `yaml:"direction"` // straight|left|right|uturn|any
}

// Conflict 冲突矩阵条目，表示两个动作不能同时占用路口
type Conflict struct {
	A Movement `yaml:"a"`
	B Movement `yaml:"b"`
}

// Phase 相位配置
type Phase struct {
	Name       string  `yaml:"name"`
	Lanes      []int32 `yaml:"lanes"`
	Duration   int32   `yaml:"duration"`             // 相位持续步数
	Permissive bool    `yaml:"permissive,omitempty"` // 允许同时放行存在冲突的车道，由路口仲裁器让行
}

// Arrival 到达生成参数
type Arrival struct {
	Seed       uint64             `yaml:"seed"`
	Rate       float64            `yaml:"rate"`                 // 每条车道每步到达一辆车的概率
	Directions map[string]float64 `yaml:"directions,omitempty"` // 转向权重
	Kinds      map[string]float64 `yaml:"kinds,omitempty"`      // 车辆类型权重
}

// MongoOutput 车辆完成记录输出到MongoDB
type MongoOutput struct {
	URI string `yaml:"uri"`
	DB  string `yaml:"db"`
	Col string `yaml:"col,omitempty"` // 为空则使用{job}_vehicles
}

// RedisOutput 快照发布到Redis频道
type RedisOutput struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel,omitempty"` // 为空则使用{job}.snapshot
}

// Output 输出配置，均为可选
type Output struct {
	Mongo *MongoOutput `yaml:"mongo,omitempty"`
	Redis *RedisOutput `yaml:"redis,omitempty"`
}

// Config YAML配置文件的根结构
type Config struct {
	Control   Control    `yaml:"control"`
	Lanes     []Lane     `yaml:"lanes"`
	Conflicts []Conflict `yaml:"conflicts,omitempty"`
	Phases    []Phase    `yaml:"phases"`
	Arrival   Arrival    `yaml:"arrival,omitempty"`
	Output    Output     `yaml:"output,omitempty"`
}
