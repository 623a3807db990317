package output

import (
	"context"
	"fmt"
	"sync"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/junction-sim/entity"
	"github.com/tsinghua-fib-lab/junction-sim/utils/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultBatchSize = 256
)

// Recorder 完成车辆记录的输出接口
type Recorder interface {
	Record(ctx context.Context, vehicles []entity.Vehicle) error
	Close(ctx context.Context) error
}

// VehicleRecord 一辆完成通过路口的车辆
type VehicleRecord struct {
	RunID       string `bson:"run_id"`
	Job         string `bson:"job"`
	VehicleID   int32  `bson:"vehicle_id"`
	Lane        int32  `bson:"lane"`
	Direction   string `bson:"direction"`
	Kind        string `bson:"kind"`
	ArrivalTick int32  `bson:"arrival_tick"`
	EntryTick   int32  `bson:"entry_tick"`
	ExitTick    int32  `bson:"exit_tick"`
	WaitTicks   int32  `bson:"wait_ticks"`
}

// NewVehicleRecord 由完成车辆生成记录
func NewVehicleRecord(runID, job string, v entity.Vehicle) VehicleRecord {
	return VehicleRecord{
		RunID:       runID,
		Job:         job,
		VehicleID:   v.ID,
		Lane:        v.Lane,
		Direction:   v.Direction.String(),
		Kind:        v.Kind.String(),
		ArrivalTick: v.ArrivalTick,
		EntryTick:   v.EntryTick,
		ExitTick:    v.ExitTick,
		WaitTicks:   v.Wait(),
	}
}

// inserter 记录器对MongoDB集合的最小依赖
type inserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// MongoRecorder 批量写入MongoDB的完成车辆记录器
// 说明：每次运行生成一个run_id，写入失败只记录日志，不影响仿真
type MongoRecorder struct {
	client    *mongo.Client
	col       inserter
	runID     string
	job       string
	batchSize int

	buffer []interface{}
	mtx    sync.Mutex
}

// NewMongoRecorder 连接MongoDB并创建记录器
// 参数：c-输出配置，job-任务名（集合名缺省为{job}_vehicles）
func NewMongoRecorder(c config.MongoOutput, job string) *MongoRecorder {
	client := mongoutil.NewClient(c.URI)
	colName := c.Col
	if colName == "" {
		colName = job + "_vehicles"
	}
	r := newMongoRecorder(client.Database(c.DB).Collection(colName), job)
	r.client = client
	log.Infof("record completed vehicles to mongo %s.%s with run id %s", c.DB, colName, r.runID)
	return r
}

func newMongoRecorder(col inserter, job string) *MongoRecorder {
	return &MongoRecorder{
		col:       col,
		runID:     uuid.NewString(),
		job:       job,
		batchSize: defaultBatchSize,
		buffer:    make([]interface{}, 0, defaultBatchSize),
	}
}

// RunID 本次运行的标识
func (r *MongoRecorder) RunID() string {
	return r.runID
}

// Record 缓存完成车辆，达到批大小时写入
func (r *MongoRecorder) Record(ctx context.Context, vehicles []entity.Vehicle) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for _, v := range vehicles {
		r.buffer = append(r.buffer, NewVehicleRecord(r.runID, r.job, v))
	}
	if len(r.buffer) < r.batchSize {
		return nil
	}
	return r.flush(ctx)
}

func (r *MongoRecorder) flush(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}
	docs := r.buffer
	r.buffer = make([]interface{}, 0, r.batchSize)
	if _, err := r.col.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert %d vehicle records: %w", len(docs), err)
	}
	return nil
}

// Close 写入剩余记录并断开连接
func (r *MongoRecorder) Close(ctx context.Context) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	err := r.flush(ctx)
	if r.client != nil {
		if dErr := r.client.Disconnect(ctx); dErr != nil && err == nil {
			err = dErr
		}
	}
	return err
}
