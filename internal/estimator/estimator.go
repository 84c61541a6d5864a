// Package estimator sizes, fingerprints and integrity-checks artifacts.
package estimator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/semmidev/harmony/internal/codec"
	"github.com/semmidev/harmony/internal/domain"
)

const mb = 1024 * 1024

// baseSizes is the expected uncompressed size of one full copy of each
// content type.
var baseSizes = map[domain.ContentType]float64{
	domain.ContentAnimals:    10 * mb,
	domain.ContentBlog:       5 * mb,
	domain.ContentFAQ:        1 * mb,
	domain.ContentResources:  15 * mb,
	domain.ContentUsers:      2 * mb,
	domain.ContentVolunteers: 1 * mb,
	domain.ContentDonations:  3 * mb,
	domain.ContentEvents:     2 * mb,
	domain.ContentSettings:   0.5 * mb,
}

var multipliers = map[domain.BackupType]float64{
	domain.BackupFull:        1.2,
	domain.BackupIncremental: 0.3,
	domain.BackupContent:     0.8,
}

// BaseSize returns the documented base size of ct in bytes.
func BaseSize(ct domain.ContentType) int64 {
	return int64(baseSizes[ct])
}

// EstimateSize predicts the artifact size in bytes. Settings and users
// backups ignore the selected content types.
func EstimateSize(contentTypes []domain.ContentType, backupType domain.BackupType) int64 {
	var size float64

	switch backupType {
	case domain.BackupSettings:
		size = 2 * baseSizes[domain.ContentSettings]
	case domain.BackupUsers:
		size = 1.1 * (baseSizes[domain.ContentUsers] + baseSizes[domain.ContentVolunteers] + baseSizes[domain.ContentDonations])
	default:
		var sum float64
		for _, ct := range domain.SortContentTypes(contentTypes) {
			sum += baseSizes[ct]
		}
		m, ok := multipliers[backupType]
		if !ok {
			m = 1
		}
		size = sum * m
	}

	return int64(math.Round(size))
}

// ComputeChecksum returns the hex SHA-256 digest of content.
func ComputeChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// FormatSize renders bytes for humans, e.g. "13 MB".
func FormatSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}

// CheckStructure parses payload as format and reports the first problem.
func CheckStructure(format domain.Format, payload []byte) error {
	if len(payload) == 0 {
		return &domain.IntegrityError{Check: "structure", Detail: "artifact is empty"}
	}
	if format == domain.FormatPDF {
		if !codec.IsPDF(payload) {
			return &domain.IntegrityError{Check: "structure", Detail: "missing PDF header"}
		}
		return nil
	}

	c, err := codec.For(format)
	if err != nil {
		return &domain.IntegrityError{Check: "structure", Detail: err.Error()}
	}
	if _, err := c.Decode(payload); err != nil {
		return &domain.IntegrityError{Check: "structure", Detail: fmt.Sprintf("invalid %s: %v", format, err)}
	}
	return nil
}
