// Package verification grades backup artifacts.
package verification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/semmidev/harmony/internal/codec"
	"github.com/semmidev/harmony/internal/domain"
	"github.com/semmidev/harmony/internal/estimator"
)

const (
	DefaultSampleSize = 25

	errorPenalty   = 25
	warningPenalty = 5
	failBelow      = 70
	passFrom       = 95
)

type Engine struct {
	sampleSize int
	unpack     estimator.Unpack
	now        func() time.Time
}

// NewEngine returns an engine that spot-checks up to sampleSize records per
// content type. unpack may be nil for plain artifacts.
func NewEngine(sampleSize int, unpack estimator.Unpack) *Engine {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Engine{
		sampleSize: sampleSize,
		unpack:     unpack,
		now:        time.Now,
	}
}

// Verify grades file against content, its stored bytes. A nil content
// leaves checksum and size unchecked and records a warning. The file is
// never modified.
func (e *Engine) Verify(file domain.BackupFile, content []byte, verifiedBy string) domain.BackupVerification {
	v := domain.BackupVerification{
		ID:           uuid.NewString(),
		BackupFileID: file.ID,
		VerifiedAt:   e.now().UTC(),
		VerifiedBy:   verifiedBy,
		Issues:       []domain.VerificationIssue{},
	}

	report := estimator.VerifyIntegrity(file, content, e.unpack)
	v.ChecksumValid = report.ChecksumValid
	v.SizeValid = report.SizeValid
	v.ContentValid = report.StructureValid

	if !report.Checked {
		v.Issues = append(v.Issues, domain.VerificationIssue{
			Severity: domain.SeverityWarning,
			Message:  "Artifact content unavailable",
			Details:  "checksum, size and content were not verified",
		})
	}
	if !report.SizeValid {
		v.Issues = append(v.Issues, issue("size", "Size mismatch", report.Detail("size")))
	}
	if !report.ChecksumValid {
		v.Issues = append(v.Issues, issue("checksum", "Checksum mismatch", report.Detail("checksum")))
	}
	if !report.StructureValid {
		v.Issues = append(v.Issues, issue("content", "Artifact could not be parsed", report.Detail("structure")+report.Detail("unpack")))
	}

	if report.Checked && report.StructureValid {
		issues := e.spotCheck(file, report.Payload)
		for _, is := range issues {
			if is.Severity == domain.SeverityError {
				v.ContentValid = false
			}
		}
		v.Issues = append(v.Issues, issues...)
	}

	v.Restorable = v.ChecksumValid && v.SizeValid && v.ContentValid && !hasErrors(v.Issues)
	v.Score = Score(v.Issues)
	v.Status = statusOf(v)
	return v
}

func issue(field, message, details string) domain.VerificationIssue {
	return domain.VerificationIssue{Severity: domain.SeverityError, Message: message, Details: details, Field: field}
}

// spotCheck samples records of each backed up content type and checks their
// required fields.
func (e *Engine) spotCheck(file domain.BackupFile, payload []byte) []domain.VerificationIssue {
	if file.Format == domain.FormatPDF {
		return []domain.VerificationIssue{{
			Severity: domain.SeverityError,
			Message:  "PDF artifacts cannot be restored",
			Field:    "format",
		}}
	}

	c, err := codec.For(file.Format)
	if err != nil {
		return []domain.VerificationIssue{{Severity: domain.SeverityError, Message: err.Error(), Field: "format"}}
	}
	ds, err := c.Decode(payload)
	if err != nil {
		return []domain.VerificationIssue{{Severity: domain.SeverityError, Message: "Artifact could not be decoded", Details: err.Error(), Field: "content"}}
	}

	var issues []domain.VerificationIssue
	if file.Metadata.RecordCount > 0 && ds.RecordCount() != file.Metadata.RecordCount {
		issues = append(issues, domain.VerificationIssue{
			Severity: domain.SeverityWarning,
			Message:  "Record count differs from metadata",
			Details:  fmt.Sprintf("expected %d, found %d", file.Metadata.RecordCount, ds.RecordCount()),
			Field:    "metadata.recordCount",
		})
	}

	for _, ct := range file.ContentTypes {
		records := ds.Records(ct)
		for _, idx := range sample(len(records), e.sampleSize) {
			rec := records[idx]
			missing := rec.MissingFields(ct)
			if len(missing) == 0 {
				continue
			}
			issues = append(issues, domain.VerificationIssue{
				Severity: domain.SeverityError,
				Message:  fmt.Sprintf("%s record %q is missing required fields", ct, rec.ID()),
				Details:  fmt.Sprintf("missing: %v", missing),
				Field:    string(ct),
			})
		}
	}
	return issues
}

// sample returns up to k indexes spread evenly over [0, n).
func sample(n, k int) []int {
	if n <= k {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, k)
	for i := range out {
		out[i] = i * n / k
	}
	return out
}

func hasErrors(issues []domain.VerificationIssue) bool {
	for _, is := range issues {
		if is.Severity == domain.SeverityError {
			return true
		}
	}
	return false
}

// Score starts at 100 and loses 25 per error and 5 per warning, within
// [0, 100].
func Score(issues []domain.VerificationIssue) int {
	score := 100
	for _, is := range issues {
		switch is.Severity {
		case domain.SeverityError:
			score -= errorPenalty
		case domain.SeverityWarning:
			score -= warningPenalty
		}
	}
	return max(0, min(100, score))
}

func statusOf(v domain.BackupVerification) domain.VerificationStatus {
	switch {
	case !v.ChecksumValid || !v.SizeValid || !v.ContentValid || !v.Restorable || v.Score < failBelow:
		return domain.VerificationFailed
	case v.Score < passFrom || len(v.Issues) > 0:
		return domain.VerificationWarning
	default:
		return domain.VerificationPassed
	}
}
