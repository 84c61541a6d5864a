package usecase

import (
	"github.com/google/uuid"

	"github.com/semmidev/harmony/internal/domain"
)

type writeAction int

const (
	writeCreate writeAction = iota
	writeUpdate
	writeSkip
)

// conflictPolicy decides how an incoming record meets the target store.
// Collisions are detected on the incoming id; preserveIDs only decides
// whether created records keep it.
type conflictPolicy struct {
	strategy       domain.ConflictStrategy
	updateExisting bool
	preserveIDs    bool
}

func importPolicy(cr domain.ConflictResolution) conflictPolicy {
	return conflictPolicy{strategy: cr.Strategy, updateExisting: cr.UpdateExisting, preserveIDs: cr.PreserveIDs}
}

// resolve returns the record to write and whether it creates, updates or
// is skipped. existing is nil when the target has no record with the id.
func (p conflictPolicy) resolve(incoming, existing domain.Record) (domain.Record, writeAction) {
	if existing == nil {
		return p.fresh(incoming), writeCreate
	}

	switch p.strategy {
	case domain.ConflictOverwrite:
		if !p.updateExisting {
			return nil, writeSkip
		}
		out := incoming.Clone()
		out[domain.IDField] = existing.ID()
		return out, writeUpdate
	case domain.ConflictMerge:
		if !p.updateExisting {
			return nil, writeSkip
		}
		return merge(existing, incoming), writeUpdate
	case domain.ConflictCreateNew:
		out := incoming.Clone()
		out[domain.IDField] = uuid.NewString()
		return out, writeCreate
	default:
		return nil, writeSkip
	}
}

func (p conflictPolicy) fresh(incoming domain.Record) domain.Record {
	out := incoming.Clone()
	if !p.preserveIDs || out.ID() == "" {
		out[domain.IDField] = uuid.NewString()
	}
	return out
}

// merge overlays the non-empty fields of incoming onto existing.
func merge(existing, incoming domain.Record) domain.Record {
	out := existing.Clone()
	for k, v := range incoming {
		if k == domain.IDField || v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}
