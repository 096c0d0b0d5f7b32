package domain

import "time"

// ContinuationRequest describes the next page of a pagination walk. It is
// plain data, serialized onto the deferred work queue.
type ContinuationRequest struct {
	Source       string `json:"source"`
	NextPage     int    `json:"page"`
	FromDate     string `json:"from_date"`
	DelaySeconds int    `json:"delay_seconds"`
}

// Delay returns DelaySeconds as a duration.
func (c ContinuationRequest) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}

type WalkStatus string

const (
	WalkRunning   WalkStatus = "running"
	WalkCompleted WalkStatus = "completed"
	WalkFailed    WalkStatus = "failed"
)

// WalkState tracks the progress of one (source, from date) pagination walk.
type WalkState struct {
	ID            int64      `db:"id"`
	Source        string     `db:"source"`
	FromDate      string     `db:"from_date"`
	LastPage      int        `db:"last_page"`
	TotalPages    int        `db:"total_pages"`
	ArticlesSaved int64      `db:"articles_saved"`
	Status        WalkStatus `db:"status"`
	LastError     string     `db:"last_error"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

type PageOutcome string

const (
	OutcomeCompleted  PageOutcome = "completed"
	OutcomeContinuing PageOutcome = "continuing"
)

// PageStats holds statistics about one ingestion invocation.
type PageStats struct {
	Source    string
	Page      int
	FromDate  string
	Fetched   int
	Inserted  int
	Updated   int
	Rejected  int
	Failed    int
	Published int
	Outcome   PageOutcome
	Next      *ContinuationRequest
	Duration  time.Duration
}
