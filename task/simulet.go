package task

import (
	"context"
	"flag"
)

const (
	SelfName = "junction" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// heartbeat 定期输出系统状态信息
func (ctx *Context) heartbeat() {
	interval := int32(*heartBeatInterval)
	if interval <= 0 || ctx.clock.Current()%interval != 0 {
		return
	}
	hour, minute, second := ctx.clock.GetHourMinuteSecond()
	log.Infof(
		"STEP: %d(%d:%d:%.2f) phase=%s queued=%d in_transit=%d completed=%d",
		ctx.clock.Current(),
		hour, minute, second,
		ctx.light.Active().Name,
		ctx.queued(),
		ctx.arbiter.Len(),
		ctx.stats.Completed,
	)
}

func (ctx *Context) queued() int {
	n := 0
	for _, l := range ctx.laneManager.Lanes() {
		n += l.Length()
	}
	return n
}

// Run 运行直到模拟区间结束、runCtx取消、Stop或syncer要求关闭
// 返回：引擎停止的致命错误
// 说明：只在两步之间检查退出条件，观察到的每个快照都对应完整的一步
func (ctx *Context) Run(runCtx context.Context) error {
	// init syncer
	if ctx.sidecar != nil {
		ctx.sidecar.Step(false)
	}
	var err error
	for {
		if runCtx.Err() != nil {
			log.Infof("step %d: run canceled: %v", ctx.clock.Current(), runCtx.Err())
			break
		}
		if ctx.sidecar != nil {
			// 通知准备阶段完成
			ctx.sidecar.NotifyStepReady()
		}
		if err = ctx.Step(); err != nil {
			break
		}
		log.Debugf("step %d: update complete", ctx.clock.Current())
		ctx.heartbeat()
		finished := ctx.clock.Finished()
		closing := false
		if ctx.sidecar != nil {
			closing = ctx.sidecar.Step(finished)
		}
		if finished || closing || ctx.stopping.Load() {
			break
		}
	}
	log.Infof("engine complete at step %d: %+v", ctx.clock.Current(), ctx.stats)
	ctx.Close()
	return err
}
