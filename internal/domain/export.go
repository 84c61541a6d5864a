package domain

import "time"

// ExportRetention is how long a finished export stays downloadable.
const ExportRetention = 7 * 24 * time.Hour

type DateRange struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type ExportFilters struct {
	Published     *bool             `json:"published,omitempty"`
	Categories    []string          `json:"categories,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Authors       []string          `json:"authors,omitempty"`
	CustomFilters map[string]string `json:"customFilters,omitempty"`
}

// ExportJob is a one-shot export of selected content.
type ExportJob struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ContentTypes  []ContentType   `json:"contentTypes"`
	Format        Format          `json:"format"`
	DateRange     *DateRange      `json:"dateRange,omitempty"`
	Filters       ExportFilters   `json:"filters"`
	IncludeFields []string        `json:"includeFields,omitempty"`
	ExcludeFields []string        `json:"excludeFields,omitempty"`
	Progress      int             `json:"progress"`
	Status        ExecutionStatus `json:"status"`
	EstimatedSize int64           `json:"estimatedSize,omitempty"`
	ActualSize    int64           `json:"actualSize,omitempty"`
	RecordCount   int             `json:"recordCount,omitempty"`
	Filename      string          `json:"filename,omitempty"`
	DownloadURL   string          `json:"downloadUrl,omitempty"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	CreatedBy     string          `json:"createdBy,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// Expired reports whether the artifact of a completed export is past its
// download window.
func (j *ExportJob) Expired(now time.Time) bool {
	return j.ExpiresAt != nil && now.After(*j.ExpiresAt)
}
