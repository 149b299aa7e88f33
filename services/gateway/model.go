package gateway

// ReadResult is the outcome of a validated read-only query.
type ReadResult struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
}

// WriteResult is the outcome of a validated, confirmed write statement.
// AffectedRows is best-effort; nil means the driver gave no row count.
type WriteResult struct {
	OK           bool   `json:"ok"`
	AffectedRows *int64 `json:"affected_rows"`
}
