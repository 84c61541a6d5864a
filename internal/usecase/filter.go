package usecase

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/semmidev/harmony/internal/domain"
)

// recordTime reads a timestamp field. RFC 3339 strings, time values and
// unix seconds are understood.
func recordTime(rec domain.Record, field string) (time.Time, bool) {
	switch v := rec[field].(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", time.DateOnly} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	case fmt.Stringer:
		if n, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return time.Unix(n, 0).UTC(), true
		}
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	case int64:
		return time.Unix(v, 0).UTC(), true
	case int:
		return time.Unix(int64(v), 0).UTC(), true
	}
	return time.Time{}, false
}

// changedSince keeps records updated after since. Records without a
// readable updatedAt are always kept.
func changedSince(rec domain.Record, since *time.Time) bool {
	if since == nil {
		return true
	}
	t, ok := recordTime(rec, "updatedAt")
	if !ok {
		return true
	}
	return t.After(*since)
}

func stringsOf(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string:
		if x == "" {
			return nil
		}
		parts := strings.Split(x, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	default:
		return []string{fmt.Sprint(x)}
	}
}

func truthy(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(x)
		return b, err == nil
	}
	return false, false
}

func overlaps(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

// matchesExport applies an export's date range and filters to one record.
func matchesExport(rec domain.Record, job *domain.ExportJob) bool {
	if r := job.DateRange; r != nil {
		t, ok := recordTime(rec, "createdAt")
		if !ok || t.Before(r.StartDate) || t.After(r.EndDate) {
			return false
		}
	}

	f := job.Filters
	if f.Published != nil {
		p, ok := truthy(rec["published"])
		if !ok || p != *f.Published {
			return false
		}
	}
	if len(f.Categories) > 0 {
		cats := slices.Concat(stringsOf(rec["category"]), stringsOf(rec["categories"]))
		if !overlaps(cats, f.Categories) {
			return false
		}
	}
	if len(f.Tags) > 0 && !overlaps(stringsOf(rec["tags"]), f.Tags) {
		return false
	}
	if len(f.Authors) > 0 && !overlaps(stringsOf(rec["author"]), f.Authors) {
		return false
	}
	for field, want := range f.CustomFilters {
		v, ok := rec[field]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

// project keeps includeFields (all when empty) minus excludeFields. The id
// always survives.
func project(rec domain.Record, include, exclude []string) domain.Record {
	out := make(domain.Record, len(rec))
	for k, v := range rec {
		if k != domain.IDField {
			if len(include) > 0 && !slices.Contains(include, k) {
				continue
			}
			if slices.Contains(exclude, k) {
				continue
			}
		}
		out[k] = v
	}
	return out
}
