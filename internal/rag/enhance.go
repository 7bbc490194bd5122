package rag

import (
	"fmt"
	"strings"

	"github.com/wardsignal/hospital-stress-backend/internal/model"
)

// lessonConsiderLimit bounds how many retrieved lessons are matched against
// each recommendation; maxNotesPerRec bounds how many historical notes a
// single rationale can accumulate.
const (
	lessonConsiderLimit = 3
	maxNotesPerRec      = 2
	outcomeTruncateLen  = 80
)

// stopwords are excluded from keyword matching.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {},
}

// Enhance appends historical notes from matching lessons to each
// recommendation's rationale. Matching is keyword-based: a lesson action
// matches when it contains any keyword from the recommendation title. At most
// maxNotesPerRec notes are added; recommendations with no match and the
// count, priority, cost, and impact of every recommendation are left
// untouched. With no lessons the input is returned as-is. Enhance never
// fails.
func Enhance(recs []model.Recommendation, lessons []model.CrisisLesson) []model.Recommendation {
	if len(lessons) == 0 || len(recs) == 0 {
		return recs
	}

	considered := lessons
	if len(considered) > lessonConsiderLimit {
		considered = considered[:lessonConsiderLimit]
	}

	out := make([]model.Recommendation, len(recs))
	for i, rec := range recs {
		out[i] = rec

		kws := keywords(rec.Title)
		if len(kws) == 0 {
			continue
		}

		type match struct {
			lesson model.CrisisLesson
			action string
		}
		var matches []match
		for _, lesson := range considered {
			for _, action := range lesson.ActionsTaken {
				if containsAny(strings.ToLower(action), kws) {
					matches = append(matches, match{lesson: lesson, action: action})
				}
			}
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > maxNotesPerRec {
			matches = matches[:maxNotesPerRec]
		}

		var sb strings.Builder
		sb.WriteString(rec.Rationale)
		sb.WriteString("\n\nHistorical Context: ")
		for _, m := range matches {
			fmt.Fprintf(&sb, "Similar action taken on %s: %s. Outcome: %s. ",
				m.lesson.Date.Format("2006-01-02"), m.action, truncate(m.lesson.Outcome, outcomeTruncateLen))
		}
		out[i].Rationale = sb.String()
	}

	return out
}

// keywords lowercases the text, drops stopwords, and keeps words longer than
// three characters.
func keywords(text string) []string {
	var kws []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if _, stop := stopwords[w]; stop {
			continue
		}
		if len(w) > 3 {
			kws = append(kws, w)
		}
	}
	return kws
}

func containsAny(s string, kws []string) bool {
	for _, kw := range kws {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
