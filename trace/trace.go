// Package trace implements the redacted, append-only audit record: one
// row per stage transition plus the per-request persistence surface
// (AppendRun, AppendFeedback). Model chain-of-thought, prompt text, and
// chunk contents never reach a StateRecord. AppendRun also persists the
// question and the final response JSON, whose citation quotes are taken
// from chunk text.
package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// StateRecord is one stage's trace entry. Forbidden fields
// (chain-of-thought, prompt text, chunk contents) are deliberately absent
// from this type: there is no field to accidentally populate with them.
type StateRecord struct {
	State    string   `json:"state"`
	Mode     string   `json:"mode"`
	Language string   `json:"language"`
	ElapsedS float64  `json:"elapsed_s"`
	Counts   Counts   `json:"counts"`
	Issues   []string `json:"issues"`
}

// Counts is the only numeric/boolean telemetry a StateRecord may carry.
type Counts struct {
	EntityCount   int     `json:"entity_count"`
	KeywordCount  int     `json:"keyword_count"`
	PacketCount   int     `json:"packet_count"`
	CitationCount int     `json:"citation_count"`
	NotFound      bool    `json:"not_found"`
	Confidence    float64 `json:"confidence"`
}

// Recorder accumulates StateRecords for one request in stage order, so
// the emitted trace is always a prefix of [LISTEN, PURPOSE, PATH,
// RETRIEVE, ACCOUNT, INTERPRET, REFLECT, FINALIZE].
type Recorder struct {
	records []StateRecord
}

// NewRecorder builds an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Append records one stage's trace entry. Callers must call this in
// strict stage order; Recorder does not itself validate ordering.
func (r *Recorder) Append(rec StateRecord) {
	r.records = append(r.records, rec)
}

// Records returns the accumulated trace, in append order.
func (r *Recorder) Records() []StateRecord {
	out := make([]StateRecord, len(r.records))
	copy(out, r.records)
	return out
}

// RunRecord is the full AppendRun payload.
type RunRecord struct {
	RequestID         string
	Question          string
	Language          string
	Mode              string
	FinalResponseJSON string
	RetrievalTrace    []StateRecord
	StateTrace        []StateRecord
	TimingsMS         map[string]int64
	CreatedAt         time.Time
}

// FeedbackRecord is the append_feedback payload.
type FeedbackRecord struct {
	RequestID string
	Rating    int // -1, 0, +1
	Tags      []string
	Comment   string
	CreatedAt time.Time
}

// Sink is the append-only persistence surface. Implementations must never
// read-modify-write an existing row.
type Sink interface {
	AppendRun(ctx context.Context, run RunRecord) error
	AppendFeedback(ctx context.Context, fb FeedbackRecord) error
}

// SQLiteSink is the reference Sink implementation, sharing the same
// *sql.DB connection as the reference retrieval store: one
// stage-trace-per-request row plus a separate feedback table.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink wraps an existing database connection. It does not own
// migrations; callers run those via the reference store's own migration
// path before constructing a SQLiteSink.
func NewSQLiteSink(db *sql.DB) *SQLiteSink {
	return &SQLiteSink{db: db}
}

func (s *SQLiteSink) AppendRun(ctx context.Context, run RunRecord) error {
	stateTraceJSON, err := json.Marshal(run.StateTrace)
	if err != nil {
		return err
	}
	retrievalTraceJSON, err := json.Marshal(run.RetrievalTrace)
	if err != nil {
		return err
	}
	timingsJSON, err := json.Marshal(run.TimingsMS)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO request_traces (
			request_id, question, language, mode, final_response,
			retrieval_trace, state_trace, timings_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RequestID, run.Question, run.Language, run.Mode, run.FinalResponseJSON,
		string(retrievalTraceJSON), string(stateTraceJSON), string(timingsJSON), run.CreatedAt)
	return err
}

func (s *SQLiteSink) AppendFeedback(ctx context.Context, fb FeedbackRecord) error {
	tagsJSON, err := json.Marshal(fb.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO request_feedback (request_id, rating, tags, comment, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, fb.RequestID, fb.Rating, string(tagsJSON), fb.Comment, fb.CreatedAt)
	return err
}

// Schema is the DDL SQLiteSink requires; callers append it to their own
// migration sequence (see store/migrations.go).
const Schema = `
CREATE TABLE IF NOT EXISTS request_traces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	question TEXT NOT NULL,
	language TEXT NOT NULL,
	mode TEXT NOT NULL,
	final_response TEXT NOT NULL,
	retrieval_trace TEXT NOT NULL,
	state_trace TEXT NOT NULL,
	timings_ms TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_traces_request_id ON request_traces(request_id);

CREATE TABLE IF NOT EXISTS request_feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	rating INTEGER NOT NULL,
	tags TEXT NOT NULL,
	comment TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_feedback_request_id ON request_feedback(request_id);
`
