package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"reportplane/pkg/db/pagination"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type Params struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p Params) *Service {
	return &Service{db: p.DB, node: p.Node}
}

// IdemTag formats an idempotency key the way it is embedded inside summaries.
func IdemTag(key string) string {
	return fmt.Sprintf("[idem:%s]", key)
}

// Append writes one entry. ID and ExecutedAt are filled when zero.
func (s *Service) Append(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = s.node.Generate().String()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(e).Error
}

// LastForTask returns the most recent entry for a task, nil when the task
// has never run.
func (s *Service) LastForTask(ctx context.Context, taskID string) (*Entry, error) {
	var e Entry
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("executed_at DESC").Order("id DESC").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// HasKeySince reports whether a summary within the look-back window carries
// the tagged idempotency key.
func (s *Service) HasKeySince(ctx context.Context, taskID, key string, since time.Time) (bool, error) {
	pattern := "%" + escapeLike(IdemTag(key)) + "%"

	var count int64
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Where("task_id = ? AND executed_at >= ?", taskID, since).
		Where("summary LIKE ? ESCAPE '\\'", pattern).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// List pages through a task's entries, newest first, with the cursor format
// shared across the control plane.
func (s *Service) List(ctx context.Context, taskID string, p pagination.Pagination) ([]*Entry, *pagination.PageInfo, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	query := s.db.WithContext(ctx).Model(&Entry{}).
		Where("task_id = ?", taskID).
		Order("executed_at DESC").Order("id DESC").
		Limit(limit + 1)

	if p.Cursor != "" {
		cursor, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			return nil, nil, err
		}
		cursorAt, err := time.Parse(time.RFC3339Nano, cursor.ExecutedAt)
		if err != nil {
			return nil, nil, err
		}
		query = query.Where(
			"(executed_at < ?) OR (executed_at = ? AND id < ?)",
			cursorAt, cursorAt, cursor.ID,
		)
	}

	var entries []*Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(entries, int32(limit), func(e *Entry) string {
		c, _ := pagination.EncodeCursor(pagination.Cursor{
			ExecutedAt: e.ExecutedAt.Format(time.RFC3339Nano),
			ID:         e.ID,
		})
		return c
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, pageInfo, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
