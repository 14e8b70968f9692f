// Package budget selects, orders, and truncates normalized records into a
// bounded context.
//
// Two caps apply in sequence: a record-count cap with per-category fairness,
// then a serialized-size cap met by trimming record messages (never by
// dropping records). Together they put a hard upper bound on context size
// regardless of input volume, which is the component's central property.
package budget

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bimmerbailey/eksight/internal/config"
)

// Default caps. MaxRecords matches what a large-context model answers well
// from; MaxChars keeps the whole prompt comfortably inside backend input
// limits.
const (
	DefaultMaxRecords = 150
	DefaultMaxChars   = 24000
)

// Context is the capped, ordered record set actually sent to the inference
// backend, plus the summary statistics of the uncapped input. Immutable once
// built; one Context serves every question in a session.
type Context struct {
	// Records is sorted by timestamp ascending and never exceeds the
	// record cap.
	Records []config.LogRecord

	// CategoryCounts and TotalRecords describe the ORIGINAL uncapped
	// input, so both the model and the user know how much was elided.
	CategoryCounts map[config.LogCategory]int
	TotalRecords   int

	// Truncated is true iff the input record count exceeded the cap.
	Truncated bool

	// Window is the time range the records were drawn from.
	Window config.TimeWindow

	// MissingCategories lists requested categories that had no log streams,
	// usually because they are not enabled on the cluster.
	MissingCategories []config.LogCategory
}

// Build produces a bounded context from an arbitrary number of records.
// Non-positive caps fall back to the defaults. The input slice is not
// modified.
func Build(records []config.LogRecord, maxRecords, maxChars int) *Context {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	counts := make(map[config.LogCategory]int)
	for _, r := range records {
		counts[r.Category]++
	}

	sorted := make([]config.LogRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	bc := &Context{
		CategoryCounts: counts,
		TotalRecords:   len(records),
	}

	selected := sorted
	if len(sorted) > maxRecords {
		selected = selectFairly(sorted, counts, maxRecords)
		bc.Truncated = true
	}

	if serializedSize(selected) > maxChars {
		selected = trimMessages(selected, maxChars)
	}

	bc.Records = selected
	return bc
}

// SerializedSize is the total length of the context's record lines, the
// quantity bounded by the char cap.
func (c *Context) SerializedSize() int {
	return serializedSize(c.Records)
}

// Categories returns the categories present in the original input, sorted by
// name for deterministic rendering.
func (c *Context) Categories() []config.LogCategory {
	cats := make([]config.LogCategory, 0, len(c.CategoryCounts))
	for cat := range c.CategoryCounts {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// Line renders one record the way it appears in the prompt. The budgeter
// sizes against this exact rendering, so prompt size never exceeds the cap.
// Fields are emitted in sorted key order for byte-identical output.
func Line(r config.LogRecord) string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(r.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	sb.WriteString("] [")
	sb.WriteString(strings.ToUpper(string(r.Category)))
	sb.WriteString("] ")
	sb.WriteString(r.Message)

	if len(r.Fields) > 0 {
		keys := make([]string, 0, len(r.Fields))
		for k := range r.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" |")
		for _, k := range keys {
			sb.WriteString(" ")
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(r.Fields[k])
		}
	}

	return sb.String()
}

func serializedSize(records []config.LogRecord) int {
	total := 0
	for _, r := range records {
		total += len(Line(r)) + 1 // newline
	}
	return total
}

// selectFairly picks maxRecords records from the timestamp-sorted input.
// Each category's allotment is proportional to its share of the input with a
// floor of one, so no category present in the source is starved; leftover
// slots are handed out round-robin in category-name order. Within its
// allotment a category contributes its most recent records, because recent
// events matter most in live troubleshooting. The result is re-sorted
// ascending.
func selectFairly(sorted []config.LogRecord, counts map[config.LogCategory]int, maxRecords int) []config.LogRecord {
	cats := make([]config.LogCategory, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	total := len(sorted)
	alloc := make(map[config.LogCategory]int, len(cats))

	if len(cats) >= maxRecords {
		// Degenerate cap: one each for as many categories as fit.
		for _, c := range cats[:maxRecords] {
			alloc[c] = 1
		}
	} else {
		used := 0
		for _, c := range cats {
			n := maxRecords * counts[c] / total
			if n < 1 {
				n = 1
			}
			if n > counts[c] {
				n = counts[c]
			}
			alloc[c] = n
			used += n
		}

		// Round-robin the remaining slots across categories that still
		// have unselected records.
		for used < maxRecords {
			progressed := false
			for _, c := range cats {
				if used == maxRecords {
					break
				}
				if alloc[c] < counts[c] {
					alloc[c]++
					used++
					progressed = true
				}
			}
			if !progressed {
				break
			}
		}

		// Floors can overshoot when many tiny categories round up; take
		// back one slot at a time, cycling categories in reverse name
		// order, never below one.
		for used > maxRecords {
			reduced := false
			for i := len(cats) - 1; i >= 0 && used > maxRecords; i-- {
				if alloc[cats[i]] > 1 {
					alloc[cats[i]]--
					used--
					reduced = true
				}
			}
			if !reduced {
				break
			}
		}
	}

	// Most recent first within each category: walk the sorted input
	// backwards and take until each allotment is filled.
	selected := make([]config.LogRecord, 0, maxRecords)
	remaining := make(map[config.LogCategory]int, len(alloc))
	for c, n := range alloc {
		remaining[c] = n
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		r := sorted[i]
		if remaining[r.Category] > 0 {
			selected = append(selected, r)
			remaining[r.Category]--
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp.Before(selected[j].Timestamp)
	})
	return selected
}

// trimMessages meets the char cap by progressively tightening a per-record
// message cap. Records are never dropped here; if even empty messages leave
// the lines over budget, structured fields go too. The returned slice is a
// fresh copy.
func trimMessages(records []config.LogRecord, maxChars int) []config.LogRecord {
	trimmed := make([]config.LogRecord, len(records))
	copy(trimmed, records)

	longest := 0
	for _, r := range trimmed {
		if len(r.Message) > longest {
			longest = len(r.Message)
		}
	}

	for limit := longest / 2; serializedSize(trimmed) > maxChars && limit > 0; limit /= 2 {
		for i := range trimmed {
			if len(trimmed[i].Message) > limit {
				trimmed[i].Message = truncate(trimmed[i].Message, limit)
			}
		}
	}

	if serializedSize(trimmed) > maxChars {
		for i := range trimmed {
			trimmed[i].Message = ""
			trimmed[i].Fields = nil
		}
	}

	return trimmed
}

// truncate cuts s to at most limit bytes, backing up to a rune boundary so
// the cut never leaves an invalid UTF-8 tail.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
