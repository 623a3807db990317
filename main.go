package main

import (
	"context"
	"encoding/base64"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/junction-sim/task"
	"github.com/tsinghua-fib-lab/junction-sim/utils/config"
	"github.com/tsinghua-fib-lab/junction-sim/utils/output"
)

var (
	// 分布式模式syncer地址，如果设置为空则激活独立部署模式
	// 独立部署：不需要syncer，不向其他服务提供受保护的RPC访问
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	// 模拟任务名，用于输出的数据库表名与频道名前缀
	job = flag.String("job", "job0", "the name of the whole simulation task")
	// 本程序监听的RPC地址
	grpcAddr = flag.String("listen", ":51102", "gRPC listening address")
	// Prometheus指标监听地址，为空则不提供
	metricsAddr = flag.String("metrics", "", "prometheus metrics listening address (empty means disabled), e.g. :9102")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "junction")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	// 获取配置
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Panic("config file or config data must be specified")
	}
	c, err := config.Load(file)
	if err != nil {
		log.Panicf("config file load err: %v", err)
	}
	log.Infof("%+v", c)

	opts := []task.Option{}
	if c.Output.Mongo != nil {
		opts = append(opts, task.WithRecorder(output.NewMongoRecorder(*c.Output.Mongo, *job)))
	}
	if c.Output.Redis != nil {
		opts = append(opts, task.WithPublisher(output.NewRedisPublisher(*c.Output.Redis, *job)))
	}
	sidecar := syncer.NewSidecar(task.SelfName, *grpcAddr, *syncerAddr)
	opts = append(opts, task.WithSidecar(sidecar, true))

	t, err := task.NewContext(*job, c, opts...)
	if err != nil {
		log.Panicf("init simulation err: %v", err)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", t.Metrics().Handler())
			log.Infof("serve metrics on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Errorf("metrics server err: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := t.Run(ctx); err != nil {
		log.Fatalf("simulation halted: %v", err)
	}
}
