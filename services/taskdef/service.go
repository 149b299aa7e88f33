package taskdef

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"reportplane/pkg/errutil"
	"reportplane/services/schedule"
)

// Service wraps the repository with the administrative operations: creating
// a definition from a human schedule intent and rescheduling an existing one.
type Service struct {
	repo Repository
	node *snowflake.Node
}

type ServiceParams struct {
	fx.In
	Repository Repository
	Node       *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{repo: p.Repository, node: p.Node}
}

// CreateInput carries everything an administrator supplies for a new task.
type CreateInput struct {
	Name        string
	Description string
	RawSQL      string
	Recipient   string
	Schedule    schedule.Intent
}

// CreateFromIntent compiles the schedule intent and persists the definition.
// A validation failure never persists anything.
func (s *Service) CreateFromIntent(ctx context.Context, in CreateInput) (*TaskDefinition, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, errutil.Validation("task name is required")
	}
	if strings.TrimSpace(in.Description) == "" && strings.TrimSpace(in.RawSQL) == "" {
		return nil, errutil.Validation("task needs a description or raw SQL")
	}

	cronExpr, err := schedule.Compile(in.Schedule)
	if err != nil {
		return nil, err
	}

	def := &TaskDefinition{
		ID:          s.node.Generate().String(),
		Name:        in.Name,
		Description: in.Description,
		RawSQL:      in.RawSQL,
		CronExpr:    cronExpr,
		Recipient:   in.Recipient,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, def); err != nil {
		return nil, err
	}

	zap.L().Info("task definition created",
		zap.String("task_id", def.ID),
		zap.String("name", def.Name),
		zap.String("cron_expr", def.CronExpr),
	)
	return def, nil
}

// Reschedule compiles a new intent and replaces the definition's cron
// expression; the dispatcher picks the change up on its next reconcile pass.
func (s *Service) Reschedule(ctx context.Context, id string, intent schedule.Intent) (*TaskDefinition, error) {
	cronExpr, err := schedule.Compile(intent)
	if err != nil {
		return nil, err
	}

	def, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	def.CronExpr = cronExpr
	def.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// Get exposes a read-only lookup for the engine side.
func (s *Service) Get(ctx context.Context, id string) (*TaskDefinition, error) {
	return s.repo.GetByID(ctx, id)
}
