package app

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	"github.com/talkincode/wagate/internal/metrics"
	"github.com/talkincode/wagate/internal/store"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// SessionCounter reports live sessions by status.
type SessionCounter interface {
	Counts() map[string]int
}

func (a *Application) initJob() {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedHostMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// ScheduleHousekeeping registers the jobs that depend on the session layer:
// gauge reconciliation and message retention.
func (a *Application) ScheduleHousekeeping(sessions SessionCounter, messages store.MessageRepository) error {
	if _, err := a.sched.AddFunc("@every 30s", func() {
		metrics.ResetSessions(sessions.Counts())
	}); err != nil {
		return err
	}

	days := a.appConfig.Retention.MessageDays
	if days <= 0 {
		zap.L().Info("app: message retention disabled")
		return nil
	}
	_, err := a.sched.AddFunc("@daily", func() {
		a.SchedClearExpiredMessages(messages, days)
	})
	return err
}

// SchedClearExpiredMessages deletes messages older than days.
func (a *Application) SchedClearExpiredMessages(messages store.MessageRepository, days int) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	before := time.Now().Add(-time.Hour * 24 * time.Duration(days))
	n, err := messages.DeleteOlderThan(ctx, before)
	if err != nil {
		zap.L().Error("app: message retention failed", zap.Error(err))
		return
	}
	zap.L().Info("app: expired messages removed", zap.Int64("count", n), zap.Time("before", before))
}

// SchedHostMonitorTask samples host and process usage into the host gauges.
func (a *Application) SchedHostMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	if cpuuse, err := cpu.Percent(0, false); err == nil && len(cpuuse) > 0 {
		metrics.Host.WithLabelValues("system", "cpu").Set(cpuuse[0])
	}
	if meminfo, err := mem.VirtualMemory(); err == nil {
		metrics.Host.WithLabelValues("system", "memory").Set(float64(meminfo.Used / 1024 / 1024))
	}

	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: PID is always within int32 range
	if err != nil {
		return
	}
	if cpuuse, err := p.CPUPercent(); err == nil {
		metrics.Host.WithLabelValues("process", "cpu").Set(cpuuse)
	}
	if meminfo, err := p.MemoryInfo(); err == nil {
		metrics.Host.WithLabelValues("process", "memory").Set(float64(meminfo.RSS / 1024 / 1024))
	}
}
