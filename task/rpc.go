package task

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName          = "junction.simulation.v1.SimulationService"
	GetSnapshotProcedure = "/" + ServiceName + "/GetSnapshot"
	servicePrefix        = "/" + ServiceName + "/"
)

// Handler 创建仿真服务的connect处理器
func (ctx *Context) Handler(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(GetSnapshotProcedure, connect.NewUnaryHandler(
		GetSnapshotProcedure,
		ctx.GetSnapshot,
		opts...,
	))
	return servicePrefix, mux
}

// Register 将SimulationService注册到sidecar
// 说明：只读取已发布的快照，不需要等待步进锁
func (ctx *Context) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		ServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return ctx.Handler(opts...)
		},
		syncer.WithNoLock(),
	)
}

// GetSnapshot 获取最近一次发布的快照
func (ctx *Context) GetSnapshot(
	_ context.Context, in *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	res, err := SnapshotToStruct(ctx.LatestSnapshot())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}

// SnapshotToStruct 将快照转换为structpb.Struct，信号灯状态使用枚举名
func SnapshotToStruct(s Snapshot) (*structpb.Struct, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if lanes, ok := m["lanes"].([]any); ok {
		for i, raw := range lanes {
			if l, ok := raw.(map[string]any); ok {
				l["signal"] = s.Lanes[i].Signal.String()
			}
		}
	}
	m["granted_lanes"] = lo.Map(s.GrantedLanes, func(id int32, _ int) any { return float64(id) })
	return structpb.NewStruct(m)
}
