package domain

import (
	"fmt"
	"slices"
	"strings"
)

// ContentType names a logical partition of the sanctuary CMS data.
type ContentType string

const (
	ContentAnimals    ContentType = "animals"
	ContentBlog       ContentType = "blog"
	ContentFAQ        ContentType = "faq"
	ContentResources  ContentType = "resources"
	ContentUsers      ContentType = "users"
	ContentVolunteers ContentType = "volunteers"
	ContentDonations  ContentType = "donations"
	ContentEvents     ContentType = "events"
	ContentSettings   ContentType = "settings"
)

var allContentTypes = []ContentType{
	ContentAnimals,
	ContentBlog,
	ContentFAQ,
	ContentResources,
	ContentUsers,
	ContentVolunteers,
	ContentDonations,
	ContentEvents,
	ContentSettings,
}

func AllContentTypes() []ContentType {
	return slices.Clone(allContentTypes)
}

func (c ContentType) Valid() bool {
	return slices.Contains(allContentTypes, c)
}

// requiredFields lists the fields every record of a content type must carry.
var requiredFields = map[ContentType][]string{
	ContentAnimals:    {"name", "species"},
	ContentBlog:       {"title"},
	ContentFAQ:        {"question"},
	ContentResources:  {"title"},
	ContentUsers:      {"email"},
	ContentVolunteers: {"email"},
	ContentDonations:  {"amount"},
	ContentEvents:     {"title"},
	ContentSettings:   {"key"},
}

func (c ContentType) RequiredFields() []string {
	return requiredFields[c]
}

// IDField is the identity field of every record.
const IDField = "id"

// Record is one row of CMS content.
type Record map[string]any

func (r Record) ID() string {
	v, ok := r[IDField]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MissingFields reports which required fields of ct are absent or blank.
func (r Record) MissingFields(ct ContentType) []string {
	var missing []string
	for _, field := range ct.RequiredFields() {
		v, ok := r[field]
		if !ok || v == nil {
			missing = append(missing, field)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// SortContentTypes returns a sorted, de-duplicated copy.
func SortContentTypes(types []ContentType) []ContentType {
	out := slices.Clone(types)
	slices.Sort(out)
	return slices.Compact(out)
}

func ContainsContentType(types []ContentType, ct ContentType) bool {
	return slices.Contains(types, ct)
}
