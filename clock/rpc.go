package clock

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"git.fiblab.net/sim/syncer/v3"
)

// Source 时钟读取接口，RPC只依赖只读视图
// 说明：引擎在每一步结束后发布时钟数据，RPC协程读取发布的副本
type Source interface {
	PublishedClock() (step int32, t float64)
}

// clockService ClockService的实现，读取已发布的时钟
type clockService struct {
	clockv1connect.UnimplementedClockServiceHandler

	src Source
}

// NewService 创建ClockService处理器
func NewService(src Source) clockv1connect.ClockServiceHandler {
	return &clockService{src: src}
}

// Handler 创建时钟服务的connect处理器
func Handler(src Source, opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
	return clockv1connect.NewClockServiceHandler(NewService(src), opts...)
}

// Register 将ClockService注册到sidecar
// 说明：使时钟服务可以通过RPC接口被外部访问，支持分布式仿真
func Register(sidecar *syncer.Sidecar, src Source) {
	sidecar.Register(
		clockv1connect.ClockServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return Handler(src, opts...)
		},
	)
}

// Now 获取当前仿真时间
// 返回：最近一次发布的仿真时间（秒）
func (s *clockService) Now(ctx context.Context, in *connect.Request[clockv1.NowRequest]) (*connect.Response[clockv1.NowResponse], error) {
	_, t := s.src.PublishedClock()
	return connect.NewResponse(&clockv1.NowResponse{
		T: t,
	}), nil
}
