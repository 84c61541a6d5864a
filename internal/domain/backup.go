package domain

import (
	"slices"
	"time"
)

type BackupType string

const (
	BackupFull        BackupType = "full"
	BackupIncremental BackupType = "incremental"
	BackupContent     BackupType = "content"
	BackupSettings    BackupType = "settings"
	BackupUsers       BackupType = "users"
)

func (t BackupType) Valid() bool {
	switch t {
	case BackupFull, BackupIncremental, BackupContent, BackupSettings, BackupUsers:
		return true
	default:
		return false
	}
}

// ScopedContentTypes returns the content types a backup of this type actually
// reads. Settings and users backups ignore the selected types.
func (t BackupType) ScopedContentTypes(selected []ContentType) []ContentType {
	switch t {
	case BackupSettings:
		return []ContentType{ContentSettings}
	case BackupUsers:
		return []ContentType{ContentUsers, ContentVolunteers, ContentDonations}
	default:
		return slices.Clone(selected)
	}
}

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyCustom:
		return true
	default:
		return false
	}
}

// BackupSchedule is the recurrence rule of a backup job. DayOfWeek is only
// read for weekly schedules, DayOfMonth for monthly, CustomCron for custom.
type BackupSchedule struct {
	Frequency  Frequency `json:"frequency"`
	Time       string    `json:"time"`
	DayOfWeek  *int      `json:"dayOfWeek,omitempty"`
	DayOfMonth *int      `json:"dayOfMonth,omitempty"`
	CustomCron string    `json:"customCron,omitempty"`
	Timezone   string    `json:"timezone"`
	Enabled    bool      `json:"enabled"`
}

type JobStatus string

const (
	JobActive JobStatus = "active"
	JobPaused JobStatus = "paused"
	JobError  JobStatus = "error"
)

// BackupJob is a recurring backup definition.
type BackupJob struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Description        string         `json:"description,omitempty"`
	Type               BackupType     `json:"type"`
	ContentTypes       []ContentType  `json:"contentTypes"`
	Schedule           BackupSchedule `json:"schedule"`
	Status             JobStatus      `json:"status"`
	RetentionDays      int            `json:"retentionDays"`
	MaxBackups         int            `json:"maxBackups"`
	CompressionEnabled bool           `json:"compressionEnabled"`
	EncryptionEnabled  bool           `json:"encryptionEnabled"`
	LastRun            *time.Time     `json:"lastRun,omitempty"`
	LastSuccess        *time.Time     `json:"lastSuccess,omitempty"`
	NextRun            *time.Time     `json:"nextRun,omitempty"`
	LastError          string         `json:"lastError,omitempty"`
	CreatedBy          string         `json:"createdBy,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// Schedulable reports whether the scheduler should consult this job at all.
func (j *BackupJob) Schedulable() bool {
	return j.Status != JobPaused && j.Schedule.Enabled
}

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
	FormatPDF  Format = "pdf"
	FormatSQL  Format = "sql"
)

func (f Format) Valid() bool {
	switch f {
	case FormatJSON, FormatCSV, FormatXML, FormatPDF, FormatSQL:
		return true
	default:
		return false
	}
}

type FileMetadata struct {
	RecordCount       int    `json:"recordCount"`
	Version           string `json:"version"`
	SourceEnvironment string `json:"sourceEnvironment"`
	IncludesMedia     bool   `json:"includesMedia"`
}

// BackupFile is the immutable artifact of a successful execution. Only
// Verified and VerifiedAt change after creation.
type BackupFile struct {
	ID            string        `json:"id"`
	JobID         string        `json:"jobId"`
	ExecutionID   string        `json:"executionId"`
	Name          string        `json:"name"`
	Filename      string        `json:"filename"`
	Size          int64         `json:"size"`
	SizeFormatted string        `json:"sizeFormatted"`
	CreatedAt     time.Time     `json:"createdAt"`
	Type          BackupType    `json:"type"`
	ContentTypes  []ContentType `json:"contentTypes"`
	Format        Format        `json:"format"`
	Checksum      string        `json:"checksum"`
	Verified      bool          `json:"verified"`
	VerifiedAt    *time.Time    `json:"verifiedAt,omitempty"`
	Compressed    bool          `json:"compressed"`
	Encrypted     bool          `json:"encrypted"`
	DownloadURL   string        `json:"downloadUrl,omitempty"`
	Metadata      FileMetadata  `json:"metadata"`
}
