// Package gateway validates arbitrary SQL text and executes it against the
// live database. Classification is pattern based on normalized text; checks
// never see the contents of comments or string literals, execution always
// uses the original text.
package gateway

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"reportplane/pkg/errutil"
)

type Service struct {
	db *gorm.DB
}

type Params struct {
	fx.In
	DB *gorm.DB
}

func NewService(p Params) *Service {
	return &Service{db: p.DB}
}

var (
	semicolonTailRe = regexp.MustCompile(`;\s*\S`)
	readLeadRe      = regexp.MustCompile(`(?is)^\s*(select|with)\b`)
	selectRe        = regexp.MustCompile(`(?is)\bselect\b`)
	limitRe         = regexp.MustCompile(`(?is)\blimit\s+\d+`)
	writeLeadRe     = regexp.MustCompile(`(?is)^\s*(insert|update|delete|replace)\b`)
	sleepRe         = regexp.MustCompile(`(?is)\bsleep\s*\(`)
)

// readBanned covers schema mutation, privileges, file IO and side channels.
// It fires even inside an otherwise valid SELECT.
var readBanned = compileKeywords(
	"alter", "create", "drop", "truncate", "rename",
	"grant", "revoke",
	"load", "load_file", "outfile", "infile",
	"handler", "set", "explain", "describe", "show", "call",
)

// writeBanned keeps the schema/privilege/file/timing keywords but not the
// DML-adjacent ones: UPDATE ... SET must pass, and the leading-token rule
// already rejects statements led by EXPLAIN, SHOW, CALL and friends.
var writeBanned = compileKeywords(
	"alter", "create", "drop", "truncate", "rename",
	"grant", "revoke",
	"load", "load_file", "outfile", "infile",
	"handler",
)

func compileKeywords(words ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		res = append(res, regexp.MustCompile(`(?is)\b`+w+`\b`))
	}
	return res
}

// RunReadOnly validates sqlText as a single read-only statement and executes
// it. When the statement carries no LIMIT clause, ` LIMIT defaultLimit` is
// appended exactly once before execution; a statement with its own LIMIT is
// still capped at defaultLimit while scanning, so at most defaultLimit rows
// are ever returned.
func (s *Service) RunReadOnly(ctx context.Context, sqlText string, defaultLimit int) (*ReadResult, error) {
	norm := Normalize(sqlText)

	if err := rejectMultiStatement(norm); err != nil {
		return nil, err
	}
	if !readLeadRe.MatchString(norm) {
		return nil, errutil.Security("only SELECT or WITH ... SELECT statements are allowed")
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(norm)), "with") && !selectRe.MatchString(norm) {
		return nil, errutil.Security("WITH clause must resolve to a SELECT")
	}
	if err := rejectKeywords(norm, readBanned); err != nil {
		return nil, err
	}
	if sleepRe.MatchString(norm) {
		return nil, errutil.Security("banned keyword: sleep")
	}

	exec := sqlText
	if !limitRe.MatchString(norm) {
		exec = strings.TrimRight(exec, " \t\r\n;") + fmt.Sprintf(" LIMIT %d", defaultLimit)
	}

	rows, err := s.db.WithContext(ctx).Raw(exec).Rows()
	if err != nil {
		return nil, errutil.Execution("query failed", errutil.WithErr(err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errutil.Execution("failed to read columns", errutil.WithErr(err))
	}

	result := &ReadResult{Columns: []string{}, Rows: [][]any{}}
	for rows.Next() {
		if defaultLimit > 0 && len(result.Rows) >= defaultLimit {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errutil.Execution("failed to scan row", errutil.WithErr(err))
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, errutil.Execution("row iteration failed", errutil.WithErr(err))
	}

	result.RowCount = len(result.Rows)
	if result.RowCount > 0 {
		result.Columns = cols
	}

	zap.L().Debug("gateway read query executed",
		zap.Int("row_count", result.RowCount),
		zap.Bool("limit_appended", exec != sqlText),
	)

	return result, nil
}

// RunWrite validates sqlText as a single INSERT/UPDATE/DELETE/REPLACE
// statement and executes it. The caller is responsible for having obtained
// explicit human confirmation beforehand; the gateway holds no confirmation
// state.
func (s *Service) RunWrite(ctx context.Context, sqlText string) (*WriteResult, error) {
	norm := Normalize(sqlText)

	if err := rejectMultiStatement(norm); err != nil {
		return nil, err
	}
	if !writeLeadRe.MatchString(norm) {
		return nil, errutil.Security("only INSERT, UPDATE, DELETE or REPLACE statements are allowed")
	}
	if err := rejectKeywords(norm, writeBanned); err != nil {
		return nil, err
	}
	if sleepRe.MatchString(norm) {
		return nil, errutil.Security("banned keyword: sleep")
	}

	res := s.db.WithContext(ctx).Exec(sqlText)
	if res.Error != nil {
		return nil, errutil.Execution("write failed", errutil.WithErr(res.Error))
	}

	affected := res.RowsAffected
	zap.L().Info("gateway write statement executed", zap.Int64("affected_rows", affected))

	return &WriteResult{OK: true, AffectedRows: &affected}, nil
}

func rejectMultiStatement(norm string) error {
	if semicolonTailRe.MatchString(norm) {
		return errutil.Security("multiple statements are not allowed")
	}
	return nil
}

func rejectKeywords(norm string, banned []*regexp.Regexp) error {
	for _, re := range banned {
		if loc := re.FindString(norm); loc != "" {
			return errutil.Security(fmt.Sprintf("banned keyword: %s", strings.ToLower(loc)))
		}
	}
	return nil
}
