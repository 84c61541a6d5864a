package domain

import "time"

type ConflictStrategy string

const (
	ConflictSkip      ConflictStrategy = "skip"
	ConflictOverwrite ConflictStrategy = "overwrite"
	ConflictMerge     ConflictStrategy = "merge"
	ConflictCreateNew ConflictStrategy = "create_new"
)

func (s ConflictStrategy) Valid() bool {
	switch s {
	case ConflictSkip, ConflictOverwrite, ConflictMerge, ConflictCreateNew:
		return true
	default:
		return false
	}
}

type ConflictResolution struct {
	Strategy       ConflictStrategy `json:"strategy"`
	SkipDuplicates bool             `json:"skipDuplicates"`
	PreserveIDs    bool             `json:"preserveIds"`
	UpdateExisting bool             `json:"updateExisting"`
}

type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Data    Record `json:"data,omitempty"`
}

// ImportPreview is computed from raw uploaded content and never stored.
type ImportPreview struct {
	TotalRecords     int        `json:"totalRecords"`
	ValidRecords     int        `json:"validRecords"`
	InvalidRecords   int        `json:"invalidRecords"`
	DuplicateRecords int        `json:"duplicateRecords"`
	NewRecords       int        `json:"newRecords"`
	Errors           []RowError `json:"errors"`
	SampleData       []Record   `json:"sampleData"`
}

type ImportResults struct {
	RecordsImported int           `json:"recordsImported"`
	RecordsSkipped  int           `json:"recordsSkipped"`
	RecordsUpdated  int           `json:"recordsUpdated"`
	RecordsCreated  int           `json:"recordsCreated"`
	Errors          []RowError    `json:"errors"`
	Warnings        []string      `json:"warnings"`
	Duration        time.Duration `json:"duration"`
}

// ImportJob loads one content type from an uploaded file. DryRun jobs only
// ever produce a Preview.
type ImportJob struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Filename           string             `json:"filename"`
	SourceKey          string             `json:"sourceKey"`
	Format             Format             `json:"format"`
	ContentType        ContentType        `json:"contentType"`
	FileSize           int64              `json:"fileSize"`
	Progress           int                `json:"progress"`
	Status             ExecutionStatus    `json:"status"`
	ConflictResolution ConflictResolution `json:"conflictResolution"`
	DryRun             bool               `json:"dryRun"`
	Preview            *ImportPreview     `json:"-"`
	Results            *ImportResults     `json:"results,omitempty"`
	ErrorMessage       string             `json:"errorMessage,omitempty"`
	CreatedBy          string             `json:"createdBy,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	CompletedAt        *time.Time         `json:"completedAt,omitempty"`
}
