package main

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"reportplane/pkg/config"
	"reportplane/pkg/db"
	"reportplane/pkg/gen"
	"reportplane/pkg/logger"
	"reportplane/pkg/redis"
	"reportplane/services/audit"
	"reportplane/services/dispatch"
	"reportplane/services/gateway"
	"reportplane/services/lock"
	"reportplane/services/runner"
	"reportplane/services/taskdef"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		gen.Module,
		fx.Provide(
			provideRedis,
			provideMailer,
			provideRenderer,
		),
		lock.Module,
		gateway.Module,
		taskdef.Module,
		audit.Module,
		runner.Module,
		dispatch.Module,
		fx.Invoke(migrate),
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

// provideRedis only dials redis when the lock backend actually needs it.
func provideRedis(lc fx.Lifecycle, cfg *config.Config) *goredis.Client {
	if cfg.Engine.LockBackend != "redis" {
		return nil
	}
	return redis.New(lc, cfg)
}

func provideMailer(cfg *config.Config) runner.Mailer {
	return &logMailer{sender: cfg.Mail.Sender}
}

func provideRenderer() runner.Renderer {
	return &textRenderer{}
}

func migrate(d *gorm.DB) error {
	return d.AutoMigrate(&taskdef.TaskDefinition{}, &audit.Entry{})
}

// logMailer stands in for the mail transport collaborator: it records the
// delivery in the log instead of speaking SMTP.
type logMailer struct {
	sender string
}

func (m *logMailer) Send(ctx context.Context, recipient, subject, body string) error {
	zap.L().Info("mail delivery",
		zap.String("from", m.sender),
		zap.String("to", recipient),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}

// textRenderer composes a plain tab-separated rendering of the result rows.
type textRenderer struct{}

func (r *textRenderer) Render(columns []string, rows [][]any) (string, error) {
	var b strings.Builder

	if len(columns) > 0 {
		b.WriteString(strings.Join(columns, "\t"))
		b.WriteString("\n")
	}
	for _, row := range rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = fmt.Sprint(v)
		}
		b.WriteString(strings.Join(parts, "\t"))
		b.WriteString("\n")
	}
	if len(rows) == 0 {
		b.WriteString("(no rows)\n")
	}

	return b.String(), nil
}
