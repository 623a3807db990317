package junction

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/junction-sim/entity"
)

var (
	ErrConflictViolation = errors.New("conflicting vehicles in intersection")
)

// ConflictViolationError 在途集合中出现冲突车辆时的诊断信息
// 说明：只有仲裁逻辑出错才会出现，引擎收到后立即停止
type ConflictViolationError struct {
	Tick     int32
	VehicleA int32
	PathA    entity.Path
	VehicleB int32
	PathB    entity.Path
}

func (e *ConflictViolationError) Error() string {
	return fmt.Sprintf(
		"tick %d: vehicle %d on %v conflicts with vehicle %d on %v",
		e.Tick, e.VehicleA, e.PathA, e.VehicleB, e.PathB,
	)
}

func (e *ConflictViolationError) Unwrap() error {
	return ErrConflictViolation
}
