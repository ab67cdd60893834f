package domain

import "time"

// FetchedPage status constants.
const (
	PageStatusSuccess = "success"
	PageStatusFailed  = "failed"
	PageStatusSkipped = "skipped"
)

// FetchedPage is the immutable record of one fetch attempt within a crawl.
// DepthLevel is fixed at creation to the BFS level at which the URL was reached.
type FetchedPage struct {
	// Identity
	ID    string `db:"id"     json:"id"`
	JobID string `db:"job_id" json:"job_id"`

	// Fetch target
	URL       string  `db:"url"        json:"url"`
	FinalURL  string  `db:"final_url"  json:"final_url"`
	ParentURL *string `db:"parent_url" json:"parent_url,omitempty"`

	// Result
	HTTPStatus    int     `db:"http_status"    json:"http_status"`
	Status        string  `db:"status"         json:"status"`
	ErrorMessage  *string `db:"error_message"  json:"error_message,omitempty"`
	Title         string  `db:"title"          json:"title"`
	ExtractedText string  `db:"extracted_text" json:"extracted_text"`
	Language      string  `db:"language"       json:"language"`

	// Discovery
	OutboundLinks StringSlice `db:"outbound_links" json:"outbound_links"`
	DepthLevel    int         `db:"depth_level"    json:"depth_level"`

	// Timing
	FetchDurationMs int64     `db:"fetch_duration_ms" json:"fetch_duration_ms"`
	CreatedAt       time.Time `db:"created_at"        json:"created_at"`
}
