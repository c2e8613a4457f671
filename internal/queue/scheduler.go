package queue

import (
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/logger"

	"github.com/hibiken/asynq"
)

// ScheduleEntry 定时任务定义
type ScheduleEntry struct {
	Cron string
	Task *asynq.Task
	Opts []asynq.Option
}

// Scheduler 周期任务调度（日收益、等级评估、对账）
type Scheduler struct {
	scheduler *asynq.Scheduler
	entries   []ScheduleEntry
}

// BuildScheduleEntries 根据引擎配置生成定时任务，cron 为空的跳过
func BuildScheduleEntries(engine config.EngineConfig) ([]ScheduleEntry, error) {
	entries := make([]ScheduleEntry, 0, 3)
	if cron := strings.TrimSpace(engine.AccrualCron); cron != "" {
		task, err := NewAccrualDailyTask(AccrualDailyPayload{})
		if err != nil {
			return nil, err
		}
		entries = append(entries, ScheduleEntry{
			Cron: cron,
			Task: task,
			Opts: []asynq.Option{asynq.Queue(constants.QueueCritical), asynq.MaxRetry(3), asynq.Timeout(2 * time.Hour)},
		})
	}
	if cron := strings.TrimSpace(engine.RankCron); cron != "" {
		task, err := NewRankEvaluateAllTask()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ScheduleEntry{
			Cron: cron,
			Task: task,
			Opts: []asynq.Option{asynq.Queue(DefaultQueue), asynq.MaxRetry(3)},
		})
	}
	if cron := strings.TrimSpace(engine.ReconcileCron); cron != "" {
		task, err := NewReconcileTask(ReconcilePayload{Trigger: "schedule"})
		if err != nil {
			return nil, err
		}
		entries = append(entries, ScheduleEntry{
			Cron: cron,
			Task: task,
			Opts: []asynq.Option{asynq.Queue(DefaultQueue), asynq.MaxRetry(1)},
		})
	}
	return entries, nil
}

// NewScheduler 创建调度器
func NewScheduler(cfg *config.QueueConfig, engine config.EngineConfig, location *time.Location) (*Scheduler, error) {
	entries, err := BuildScheduleEntries(engine)
	if err != nil {
		return nil, err
	}
	if location == nil {
		location = time.UTC
	}
	scheduler := asynq.NewScheduler(RedisOpt(cfg), &asynq.SchedulerOpts{
		Location: location,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Errorw("scheduler_enqueue_failed", "error", err)
				return
			}
			logger.Infow("scheduler_enqueued", "task_type", info.Type, "task_id", info.ID, "queue", info.Queue)
		},
	})
	return &Scheduler{scheduler: scheduler, entries: entries}, nil
}

// Start 注册并启动调度器
func (s *Scheduler) Start() error {
	for _, entry := range s.entries {
		entryID, err := s.scheduler.Register(entry.Cron, entry.Task, entry.Opts...)
		if err != nil {
			return err
		}
		logger.Infow("scheduler_registered", "task_type", entry.Task.Type(), "cron", entry.Cron, "entry_id", entryID)
	}
	return s.scheduler.Start()
}

// Shutdown 停止调度器
func (s *Scheduler) Shutdown() {
	if s == nil || s.scheduler == nil {
		return
	}
	s.scheduler.Shutdown()
}
