package runner

import "context"

// AgentResult is what the natural-language agent returns for a question.
// NeedsClarification is a legitimate terminal state, not an error: the run
// succeeded but nothing should be delivered.
type AgentResult struct {
	Columns            []string
	Rows               [][]any
	RowCount           int
	UsedSQL            string
	NeedsClarification bool
}

// Agent translates a natural-language question into a result set. It must
// not fail for ordinary "no results" cases, only for hard infrastructure
// failure.
type Agent interface {
	Ask(ctx context.Context, question string) (*AgentResult, error)
}

// Renderer builds the human-readable body from row content.
type Renderer interface {
	Render(columns []string, rows [][]any) (string, error)
}

// Mailer delivers a composed result. Transport is an external collaborator;
// a failure here is a recorded partial outcome, never a rollback.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Options are the caller-supplied knobs of one invocation.
type Options struct {
	IdempotencyKey  string
	ThrottleSeconds int
}

// Report is the runner's answer to its caller.
type Report struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Mail outcome strings as they appear in audit summaries.
const (
	MailSentOK         = "SENT OK"
	MailSkipped        = "SKIPPED"
	MailSkippedClarify = "SKIPPED (needs_clarification)"
)
