// Package dispatch owns the live trigger registry. Triggers are namespaced
// with a reserved prefix so reconciliation can tell engine-managed entries
// apart from anything else sharing the cron instance, and are always
// replaced, never patched, when a definition changes.
package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"reportplane/pkg/config"
	"reportplane/services/runner"
	"reportplane/services/taskdef"
)

// managedPrefix marks triggers owned by the task engine.
const managedPrefix = "taskengine:"

// cronParser parses standard 5-field cron expressions (minute, hour, dom,
// month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// TaskRunner is the slice of the execution coordinator the dispatcher needs.
type TaskRunner interface {
	Run(ctx context.Context, taskID string, opts runner.Options) runner.Report
}

type Dispatcher struct {
	cron     *cronlib.Cron
	runner   TaskRunner
	defs     taskdef.Repository
	interval time.Duration

	mu      sync.Mutex
	entries map[string]cronlib.EntryID

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Params struct {
	fx.In
	Cfg        *config.Config
	Repository taskdef.Repository
	Runner     TaskRunner
}

func NewDispatcher(p Params) *Dispatcher {
	interval := p.Cfg.Engine.ReconcileInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	// The runner guards its own panics; the Recover chain is the backstop so
	// no job can ever take the cron goroutine down with it.
	return &Dispatcher{
		cron: cronlib.New(
			cronlib.WithParser(cronParser),
			cronlib.WithChain(cronlib.Recover(cronlib.PrintfLogger(zap.NewStdLog(zap.L())))),
		),
		runner:   p.Runner,
		defs:     p.Repository,
		interval: interval,
		entries:  make(map[string]cronlib.EntryID),
	}
}

// Start runs one reconcile pass, starts the cron instance and the periodic
// reconcile loop.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	if err := d.Reconcile(ctx); err != nil {
		zap.L().Error("[Dispatch] initial reconcile failed", zap.Error(err))
	}

	d.cron.Start()

	d.wg.Add(1)
	go d.loop(ctx)

	zap.L().Info("[Dispatch] dispatcher started", zap.Duration("reconcile_interval", d.interval))
}

// Stop cancels the reconcile loop and waits for in-flight cron jobs.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	<-d.cron.Stop().Done()
	zap.L().Info("[Dispatch] dispatcher stopped")
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Reconcile(ctx); err != nil {
				zap.L().Error("[Dispatch] reconcile failed", zap.Error(err))
			}
		}
	}
}

// Reconcile diffs the live trigger registry against the enabled definitions:
// managed triggers whose definition disappeared or was disabled are removed,
// and every enabled definition gets its trigger re-installed so schedule
// changes are picked up without restart.
func (d *Dispatcher) Reconcile(ctx context.Context) error {
	defs, err := d.defs.ListEnabled(ctx)
	if err != nil {
		return err
	}

	desired := make(map[string]taskdef.TaskDefinition, len(defs))
	for _, def := range defs {
		desired[managedPrefix+def.ID] = def
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for name, entryID := range d.entries {
		if _, ok := desired[name]; !ok {
			d.cron.Remove(entryID)
			delete(d.entries, name)
			removed++
		}
	}

	installed := 0
	for name, def := range desired {
		if entryID, ok := d.entries[name]; ok {
			d.cron.Remove(entryID)
			delete(d.entries, name)
		}

		taskID := def.ID
		entryID, err := d.cron.AddFunc(def.CronExpr, func() {
			d.fire(taskID)
		})
		if err != nil {
			zap.L().Error("[Dispatch] invalid cron expression, trigger not installed",
				zap.String("task_id", def.ID),
				zap.String("cron_expr", def.CronExpr),
				zap.Error(err),
			)
			continue
		}

		d.entries[name] = entryID
		installed++
	}

	zap.L().Info("[Dispatch] reconciled triggers",
		zap.Int("installed", installed),
		zap.Int("removed", removed),
	)
	return nil
}

// fire runs one task invocation. Cron already runs each job in its own
// goroutine, so the scheduler loop is never blocked by an execution; the
// runner guarantees nothing propagates back out of it.
func (d *Dispatcher) fire(taskID string) {
	report := d.runner.Run(context.Background(), taskID, runner.Options{})
	zap.L().Info("[Dispatch] trigger fired",
		zap.String("task_id", taskID),
		zap.Bool("ok", report.OK),
		zap.String("outcome", report.Message),
	)
}

// ManagedTriggers returns the sorted names of live engine-managed triggers.
func (d *Dispatcher) ManagedTriggers() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
