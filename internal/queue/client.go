package queue

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/constants"

	"github.com/hibiken/asynq"
)

// DefaultQueue 默认队列名称
const DefaultQueue = constants.QueueDefault

const (
	defaultConcurrency = 10
	replayMaxRetry     = 5
)

// Client 任务投递端；未启用时所有投递为空操作
type Client struct {
	client *asynq.Client
}

// NewClient 按配置创建投递端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}, nil
}

func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// submit 投递任务；TaskID 冲突说明同一任务已在队列中，视为成功
func (c *Client) submit(task *asynq.Task, err error, opts ...asynq.Option) error {
	if err != nil || !c.Enabled() {
		return err
	}
	_, err = c.client.Enqueue(task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// EnqueueAccrual 投递日收益批处理，同一结算日只排队一次
func (c *Client) EnqueueAccrual(payload AccrualDailyPayload) error {
	opts := []asynq.Option{asynq.Queue(constants.QueueCritical)}
	if asOf := strings.TrimSpace(payload.AsOf); asOf != "" {
		opts = append(opts, asynq.TaskID(TaskAccrualDaily+":"+asOf))
	}
	task, err := NewAccrualDailyTask(payload)
	return c.submit(task, err, opts...)
}

// EnqueueRankEvaluate memberID 为 0 时评估全部会员
func (c *Client) EnqueueRankEvaluate(memberID uint) error {
	if memberID == 0 {
		task, err := NewRankEvaluateAllTask()
		return c.submit(task, err, asynq.Queue(DefaultQueue))
	}
	task, err := NewRankEvaluateMemberTask(RankEvaluatePayload{MemberID: memberID})
	return c.submit(task, err, asynq.Queue(DefaultQueue))
}

// EnqueueCommissionReplay 投递业绩事件重放，按参考号去重
func (c *Client) EnqueueCommissionReplay(payload CommissionReplayPayload) error {
	opts := []asynq.Option{asynq.Queue(DefaultQueue), asynq.MaxRetry(replayMaxRetry)}
	if ref := strings.TrimSpace(payload.Reference); ref != "" {
		opts = append(opts, asynq.TaskID(TaskCommissionReplay+":"+ref))
	}
	task, err := NewCommissionReplayTask(payload)
	return c.submit(task, err, opts...)
}

// BuildServerConfig 生成 worker 端连接与并发配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	serverCfg := asynq.Config{
		Concurrency: defaultConcurrency,
		Queues:      map[string]int{DefaultQueue: 1, constants.QueueCritical: 2},
	}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			serverCfg.Concurrency = cfg.Concurrency
		}
		if len(cfg.Queues) > 0 {
			serverCfg.Queues = cfg.Queues
		}
	}
	return RedisOpt(cfg), serverCfg
}

// RedisOpt 队列使用的 Redis 连接参数
func RedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}
	if cfg == nil {
		return opt
	}
	host, port := strings.TrimSpace(cfg.Host), cfg.Port
	if host == "" {
		host = "127.0.0.1"
	}
	if port <= 0 {
		port = 6379
	}
	opt.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
