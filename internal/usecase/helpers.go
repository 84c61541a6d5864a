package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const timestampLayout = "20060102_150405"

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "job"
	}
	return s
}

// artifactName builds "<prefix>/<slug>_<timestamp><ext>". The timestamp is
// always rendered in UTC.
func artifactName(prefix, name string, at time.Time, ext string) string {
	return fmt.Sprintf("%s/%s_%s%s", prefix, slugify(name), at.UTC().Format(timestampLayout), ext)
}

var timestampPattern = regexp.MustCompile(`(\d{8})_(\d{6})`)

// extractTimestamp reads the creation time back out of an artifact name.
func extractTimestamp(filename string) (time.Time, error) {
	matches := timestampPattern.FindStringSubmatch(filename)
	if len(matches) < 3 {
		return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found")
	}
	return time.Parse(timestampLayout, matches[1]+"_"+matches[2])
}

// shortID is the first block of a uuid, enough to tell artifacts of the
// same second apart.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
