package estimator

import (
	"errors"
	"fmt"

	"github.com/semmidev/harmony/internal/domain"
)

// Unpack reverses the encryption and compression of a stored artifact.
type Unpack func(file domain.BackupFile, stored []byte) ([]byte, error)

// IntegrityReport is the outcome of VerifyIntegrity. Without content the
// byte-level checks cannot run and Checked is false.
type IntegrityReport struct {
	IsValid        bool
	Checked        bool
	ChecksumValid  bool
	SizeValid      bool
	StructureValid bool
	Issues         []string
	// Payload is the unpacked artifact, set when unpacking succeeded.
	Payload []byte

	failures []*domain.IntegrityError
}

// Err returns the first failing check, or nil.
func (r IntegrityReport) Err() error {
	if len(r.failures) == 0 {
		return nil
	}
	return r.failures[0]
}

// Detail returns the message of the named failed check, or "".
func (r IntegrityReport) Detail(check string) string {
	for _, f := range r.failures {
		if f.Check == check {
			return f.Detail
		}
	}
	return ""
}

func (r *IntegrityReport) fail(check, detail string) {
	r.failures = append(r.failures, &domain.IntegrityError{Check: check, Detail: detail})
	r.Issues = append(r.Issues, detail)
	r.IsValid = false
}

// VerifyIntegrity compares content, the stored bytes of file, against the
// recorded size and checksum, then parses the unpacked payload. A nil
// unpack treats the stored bytes as the payload.
func VerifyIntegrity(file domain.BackupFile, content []byte, unpack Unpack) IntegrityReport {
	report := IntegrityReport{
		IsValid:        true,
		ChecksumValid:  true,
		SizeValid:      true,
		StructureValid: true,
		Issues:         []string{},
	}
	if content == nil {
		return report
	}
	report.Checked = true

	if int64(len(content)) != file.Size {
		report.SizeValid = false
		report.fail("size", fmt.Sprintf("size mismatch: expected %d bytes, got %d", file.Size, len(content)))
	}
	if sum := ComputeChecksum(content); sum != file.Checksum {
		report.ChecksumValid = false
		report.fail("checksum", fmt.Sprintf("checksum mismatch: expected %s, got %s", file.Checksum, sum))
	}

	payload := content
	if unpack != nil {
		p, err := unpack(file, content)
		if err != nil {
			report.StructureValid = false
			report.fail("unpack", fmt.Sprintf("cannot unpack artifact: %v", err))
			return report
		}
		payload = p
	}
	report.Payload = payload

	if err := CheckStructure(file.Format, payload); err != nil {
		report.StructureValid = false
		var ie *domain.IntegrityError
		if errors.As(err, &ie) {
			report.fail(ie.Check, ie.Detail)
		} else {
			report.fail("structure", err.Error())
		}
	}
	return report
}
