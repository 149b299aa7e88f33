// Package runner coordinates one task run end to end: lock, throttle and
// idempotency checks, data acquisition, composition, delivery and the audit
// write. Nothing in here may escape to the dispatcher; every path funnels
// into a captured summary and exactly one audit entry.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"reportplane/pkg/config"
	"reportplane/services/audit"
	"reportplane/services/gateway"
	"reportplane/services/lock"
	"reportplane/services/taskdef"
)

const (
	lockNamePrefix    = "task:"
	idempotencyWindow = time.Hour
)

type Service struct {
	cfg      *config.Config
	defs     taskdef.Repository
	gateway  *gateway.Service
	audit    *audit.Service
	locker   lock.Locker
	agent    Agent
	renderer Renderer
	mailer   Mailer
}

type Params struct {
	fx.In
	Cfg        *config.Config
	Repository taskdef.Repository
	Gateway    *gateway.Service
	Audit      *audit.Service
	Locker     lock.Locker

	Agent    Agent    `optional:"true"`
	Renderer Renderer `optional:"true"`
	Mailer   Mailer   `optional:"true"`
}

func NewService(p Params) *Service {
	return &Service{
		cfg:      p.Cfg,
		defs:     p.Repository,
		gateway:  p.Gateway,
		audit:    p.Audit,
		locker:   p.Locker,
		agent:    p.Agent,
		renderer: p.Renderer,
		mailer:   p.Mailer,
	}
}

// Run executes one invocation of the task. Terminal states are "delivered",
// "skipped-<reason>" and "failed-<reason>"; each writes one audit entry.
// Nothing escapes Run as a panic: the guard covers every step, including a
// misbehaving lock backend or task store.
func (s *Service) Run(ctx context.Context, taskID string, opts Options) (report Report) {
	log := zap.L().With(zap.String("task_id", taskID))

	defer func() {
		if r := recover(); r != nil {
			summary := fmt.Sprintf("failed-panic: %v, mail=%s", r, MailSkipped)
			s.record(ctx, taskID, 0, summary, opts.IdempotencyKey, nil)
			log.Error("task run panicked", zap.Any("panic", r))
			report = Report{OK: false, Message: "failed-panic"}
		}
	}()

	def, err := s.defs.GetByID(ctx, taskID)
	if err != nil {
		reason := "failed-load"
		if errors.Is(err, gorm.ErrRecordNotFound) {
			reason = "failed-unknown-task"
		}
		summary := fmt.Sprintf("%s: %v, mail=%s", reason, err, MailSkipped)
		s.record(ctx, taskID, 0, summary, "", nil)
		log.Warn("task load failed", zap.Error(err))
		return Report{OK: false, Message: reason}
	}
	if !def.IsActive {
		summary := fmt.Sprintf("skipped-disabled, mail=%s", MailSkipped)
		s.record(ctx, taskID, 0, summary, "", nil)
		return Report{OK: false, Message: "skipped-disabled"}
	}

	acquired, err := s.locker.TryAcquire(ctx, lockNamePrefix+taskID)
	if err != nil {
		summary := fmt.Sprintf("failed-lock: %v, mail=%s", err, MailSkipped)
		s.record(ctx, taskID, 0, summary, "", nil)
		log.Error("lock acquisition failed", zap.Error(err))
		return Report{OK: false, Message: "failed-lock"}
	}
	if !acquired {
		summary := fmt.Sprintf("skipped-busy, mail=%s", MailSkipped)
		s.record(ctx, taskID, 0, summary, "", nil)
		log.Info("task already running, skipped")
		return Report{OK: false, Message: "skipped-busy"}
	}

	// The lock must never outlive the execution, panics included.
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockNamePrefix+taskID); err != nil {
			log.Error("lock release failed", zap.Error(err))
		}
	}()

	return s.execute(ctx, def, opts, log)
}

// execute covers throttle, idempotency, data acquisition, composition and
// delivery. It runs only while the task lock is held; panics unwind to the
// guard in Run, releasing the lock on the way.
func (s *Service) execute(ctx context.Context, def *taskdef.TaskDefinition, opts Options, log *zap.Logger) Report {
	window := time.Duration(opts.ThrottleSeconds) * time.Second
	if opts.ThrottleSeconds == 0 {
		window = time.Duration(s.cfg.Engine.ThrottleSeconds) * time.Second
	}
	if window > 0 {
		last, err := s.audit.LastForTask(ctx, def.ID)
		if err != nil {
			log.Warn("throttle lookup failed", zap.Error(err))
		} else if last != nil {
			elapsed := time.Since(last.ExecutedAt)
			if elapsed < window {
				summary := fmt.Sprintf("skipped-throttled (elapsed %s < %s), mail=%s",
					elapsed.Round(time.Second), window, MailSkipped)
				s.record(ctx, def.ID, 0, summary, "", nil)
				log.Info("task throttled", zap.Duration("elapsed", elapsed), zap.Duration("window", window))
				return Report{OK: false, Message: "skipped-throttled"}
			}
		}
	}

	if opts.IdempotencyKey != "" {
		found, err := s.audit.HasKeySince(ctx, def.ID, opts.IdempotencyKey, time.Now().Add(-idempotencyWindow))
		if err != nil {
			log.Warn("idempotency lookup failed", zap.Error(err))
		} else if found {
			summary := fmt.Sprintf("skipped-duplicate, mail=%s", MailSkipped)
			s.record(ctx, def.ID, 0, summary, "", nil)
			log.Info("duplicate idempotency key, skipped", zap.String("key", opts.IdempotencyKey))
			return Report{OK: false, Message: "skipped-duplicate"}
		}
	}

	columns, rows, rowCount, usedSQL, needsClarification, execErr := s.acquire(ctx, def)

	meta := map[string]any{}
	if usedSQL != "" {
		meta["used_sql"] = usedSQL
	}

	if execErr != nil {
		summary := fmt.Sprintf("failed-query: %v, mail=%s", execErr, MailSkipped)
		s.record(ctx, def.ID, 0, summary, opts.IdempotencyKey, meta)
		log.Error("data acquisition failed", zap.Error(execErr))
		return Report{OK: false, Message: "failed-query"}
	}

	mailStatus := s.deliver(ctx, def, columns, rows, needsClarification, log)

	terminal := "delivered"
	switch {
	case needsClarification:
		terminal = "skipped-clarification"
	case def.Recipient == "" || s.mailer == nil:
		terminal = "ran"
	case strings.HasPrefix(mailStatus, "ERROR"):
		terminal = "ran-not-sent"
	}

	summary := fmt.Sprintf("%s rows=%d, mail=%s", terminal, rowCount, mailStatus)
	s.record(ctx, def.ID, rowCount, summary, opts.IdempotencyKey, meta)

	log.Info("task run finished",
		zap.String("terminal", terminal),
		zap.Int("row_count", rowCount),
		zap.String("mail", mailStatus),
	)

	return Report{OK: true, Message: terminal}
}

// acquire obtains rows either through the safety gateway (raw SQL takes
// priority) or through the natural-language agent.
func (s *Service) acquire(ctx context.Context, def *taskdef.TaskDefinition) (columns []string, rows [][]any, rowCount int, usedSQL string, needsClarification bool, err error) {
	if strings.TrimSpace(def.RawSQL) != "" {
		res, gwErr := s.gateway.RunReadOnly(ctx, def.RawSQL, s.cfg.Engine.DefaultRowLimit)
		if gwErr != nil {
			return nil, nil, 0, def.RawSQL, false, gwErr
		}
		return res.Columns, res.Rows, res.RowCount, def.RawSQL, false, nil
	}

	if s.agent == nil {
		return nil, nil, 0, "", false, fmt.Errorf("task has no raw SQL and no agent is configured")
	}

	ar, agentErr := s.agent.Ask(ctx, def.Description)
	if agentErr != nil {
		return nil, nil, 0, "", false, agentErr
	}
	return ar.Columns, ar.Rows, ar.RowCount, ar.UsedSQL, ar.NeedsClarification, nil
}

// deliver composes and sends the result. Delivery failure does not
// invalidate the completed acquisition; the returned status lands in the
// audit summary.
func (s *Service) deliver(ctx context.Context, def *taskdef.TaskDefinition, columns []string, rows [][]any, needsClarification bool, log *zap.Logger) string {
	if needsClarification {
		return MailSkippedClarify
	}
	if def.Recipient == "" || s.mailer == nil {
		return MailSkipped
	}

	body, err := s.compose(columns, rows)
	if err != nil {
		log.Error("result composition failed", zap.Error(err))
		return fmt.Sprintf("ERROR (%v)", err)
	}

	subject := fmt.Sprintf("Scheduled report: %s", def.Name)
	if err := s.mailer.Send(ctx, def.Recipient, subject, body); err != nil {
		log.Error("delivery failed", zap.String("recipient", def.Recipient), zap.Error(err))
		return fmt.Sprintf("ERROR (%v)", err)
	}
	return MailSentOK
}

func (s *Service) compose(columns []string, rows [][]any) (string, error) {
	if s.renderer != nil {
		return s.renderer.Render(columns, rows)
	}

	// Plain fallback when no renderer collaborator is wired.
	var b strings.Builder
	b.WriteString(strings.Join(columns, "\t"))
	b.WriteString("\n")
	for _, row := range rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = fmt.Sprint(v)
		}
		b.WriteString(strings.Join(parts, "\t"))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// record writes the single audit entry of this invocation. The idempotency
// key, when present, is embedded as a tagged substring so later invocations
// can find it within the look-back window. Callers pass an empty key for
// outcomes that never reached data acquisition (skips, load and lock
// failures): those must not consume the key, a retry with it is legitimate.
func (s *Service) record(ctx context.Context, taskID string, rowCount int, summary, idemKey string, meta map[string]any) {
	if idemKey != "" {
		summary = summary + " " + audit.IdemTag(idemKey)
	}

	entry := &audit.Entry{
		TaskID:   taskID,
		RowCount: rowCount,
		Summary:  summary,
	}
	if len(meta) > 0 {
		if raw, err := json.Marshal(meta); err == nil {
			entry.Metadata = datatypes.JSON(raw)
		}
	}

	if err := s.audit.Append(context.WithoutCancel(ctx), entry); err != nil {
		zap.L().Error("audit write failed", zap.String("task_id", taskID), zap.Error(err))
	}
}
