package domain

import "time"

type MigrationStrategy struct {
	HandleConflicts       ConflictStrategy `json:"handleConflicts"`
	PreserveRelationships bool             `json:"preserveRelationships"`
	ValidateData          bool             `json:"validateData"`
	CreateBackup          bool             `json:"createBackup"`
}

type ContentTypeResult struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type MigrationResults struct {
	RecordsMigrated int                               `json:"recordsMigrated"`
	RecordsSkipped  int                               `json:"recordsSkipped"`
	RecordsFailed   int                               `json:"recordsFailed"`
	ByContentType   map[ContentType]ContentTypeResult `json:"byContentType"`
	Errors          []RowError                        `json:"errors"`
	Warnings        []string                          `json:"warnings"`
	BackupKey       string                            `json:"backupKey,omitempty"`
	Duration        time.Duration                     `json:"duration"`
}

// MigrationJob copies content between two named environments.
type MigrationJob struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	SourceEnvironment string            `json:"sourceEnvironment"`
	TargetEnvironment string            `json:"targetEnvironment"`
	ContentTypes      []ContentType     `json:"contentTypes"`
	MigrationStrategy MigrationStrategy `json:"migrationStrategy"`
	DryRun            bool              `json:"dryRun"`
	PreserveIDs       bool              `json:"preserveIds"`
	Status            ExecutionStatus   `json:"status"`
	Progress          int               `json:"progress"`
	StartTime         *time.Time        `json:"startTime,omitempty"`
	EndTime           *time.Time        `json:"endTime,omitempty"`
	Results           *MigrationResults `json:"results,omitempty"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
	CreatedBy         string            `json:"createdBy,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}
