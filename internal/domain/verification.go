package domain

import "time"

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

type VerificationStatus string

const (
	VerificationPassed  VerificationStatus = "passed"
	VerificationWarning VerificationStatus = "warning"
	VerificationFailed  VerificationStatus = "failed"
)

type VerificationIssue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Details  string   `json:"details,omitempty"`
	Field    string   `json:"field,omitempty"`
}

// BackupVerification is one verdict on a BackupFile. The latest one decides
// BackupFile.Verified.
type BackupVerification struct {
	ID            string              `json:"id"`
	BackupFileID  string              `json:"backupFileId"`
	VerifiedAt    time.Time           `json:"verifiedAt"`
	VerifiedBy    string              `json:"verifiedBy"`
	Status        VerificationStatus  `json:"status"`
	ChecksumValid bool                `json:"checksumValid"`
	SizeValid     bool                `json:"sizeValid"`
	ContentValid  bool                `json:"contentValid"`
	Restorable    bool                `json:"restorable"`
	Issues        []VerificationIssue `json:"issues"`
	Score         int                 `json:"score"`
}

// Health levels, ordered from best to worst.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

func (h Health) rank() int {
	switch h {
	case HealthCritical:
		return 2
	case HealthWarning:
		return 1
	default:
		return 0
	}
}

// WorstHealth returns the most severe of the given levels.
func WorstHealth(levels ...Health) Health {
	worst := HealthHealthy
	for _, h := range levels {
		if h.rank() > worst.rank() {
			worst = h
		}
	}
	return worst
}

type StorageHealth struct {
	Health     Health   `json:"health"`
	UsedBytes  int64    `json:"usedBytes"`
	QuotaBytes int64    `json:"quotaBytes,omitempty"`
	FileCount  int      `json:"fileCount"`
	Issues     []string `json:"issues,omitempty"`
}

type ScheduleHealth struct {
	Health      Health   `json:"health"`
	ActiveJobs  int      `json:"activeJobs"`
	PausedJobs  int      `json:"pausedJobs"`
	FailedJobs  int      `json:"failedJobs"`
	OverdueJobs int      `json:"overdueJobs"`
	Issues      []string `json:"issues,omitempty"`
}

type VerificationHealth struct {
	Health              Health   `json:"health"`
	VerifiedFiles       int      `json:"verifiedFiles"`
	UnverifiedFiles     int      `json:"unverifiedFiles"`
	FailedVerifications int      `json:"failedVerifications"`
	Issues              []string `json:"issues,omitempty"`
}

// BackupHealthCheck is recomputed on demand, never stored.
type BackupHealthCheck struct {
	CheckedAt     time.Time          `json:"checkedAt"`
	OverallHealth Health             `json:"overallHealth"`
	Storage       StorageHealth      `json:"storage"`
	Schedule      ScheduleHealth     `json:"schedule"`
	Verification  VerificationHealth `json:"verification"`
}
