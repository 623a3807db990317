package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
control:
  step:
    start: 0
    total: 100
  crossing_ticks: 2
lanes:
  - id: 1
    approach: north
    capacity: 5
  - id: 2
    approach: east
conflicts:
  - a: {lane: 1, direction: any}
    b: {lane: 2, direction: any}
phases:
  - name: N
    lanes: [1]
    duration: 5
  - name: E
    lanes: [2]
    duration: 5
arrival:
  seed: 42
  rate: 0.2
`

func TestLoadFillsDefaults(t *testing.T) {
	c, err := Load([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.Control.Step.Interval)
	assert.Equal(t, CONTROLLER_FIXED, c.Control.Controller)
	assert.Equal(t, POLICY_REJECT, c.Control.FullPolicy)
	assert.Equal(t, defaultMaxRepeat, c.Control.MaxPressure.MaxRepeat)
	assert.Len(t, c.Lanes, 2)
	assert.Equal(t, 0, c.Lanes[1].Capacity)
	assert.Equal(t, DIRECTION_ANY, c.Conflicts[0].A.Direction)
	assert.Nil(t, c.Output.Mongo)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := Load([]byte(sample + "\nunknown: 1\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	base, err := Load([]byte(sample))
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"zero crossing":  func(c *Config) { c.Control.CrossingTicks = 0 },
		"zero total":     func(c *Config) { c.Control.Step.Total = 0 },
		"bad controller": func(c *Config) { c.Control.Controller = "smart" },
		"bad policy":     func(c *Config) { c.Control.FullPolicy = "wait" },
		"no lanes":       func(c *Config) { c.Lanes = nil },
		"duplicate lane": func(c *Config) { c.Lanes = append(c.Lanes, Lane{ID: 1, Approach: "south"}) },
		"bad capacity":   func(c *Config) { c.Lanes[0].Capacity = -1 },
		"unknown lane":   func(c *Config) { c.Conflicts[0].B.Lane = 9 },
		"rate too high":  func(c *Config) { c.Arrival.Rate = 1.5 },
		"negative kind":  func(c *Config) { c.Arrival.Kinds = map[string]float64{"heavy": -1} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			c.Lanes = append([]Lane(nil), base.Lanes...)
			c.Conflicts = append([]Conflict(nil), base.Conflicts...)
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadExampleFile(t *testing.T) {
	c, err := LoadFile("../../configs/cross.yaml")
	require.NoError(t, err)
	assert.Len(t, c.Lanes, 4)
	assert.Len(t, c.Phases, 4)
	assert.Empty(t, c.Phases[1].Lanes)
	assert.Equal(t, 0.15, c.Arrival.Rate)
	assert.Nil(t, c.Output.Mongo)
}
