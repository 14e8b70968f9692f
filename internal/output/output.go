// Package output renders analysis results, cluster listings, and failures.
// It supports text, JSON, and table formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bimmerbailey/eksight/internal/budget"
	"github.com/bimmerbailey/eksight/internal/config"
	"github.com/bimmerbailey/eksight/internal/eks"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// Writer handles writing formatted output.
type Writer struct {
	w      io.Writer
	format Format
	color  ColorMode
}

// New creates a new output Writer.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format, color: ColorAuto}
}

// WithColor sets the color mode and returns the writer.
func (wr *Writer) WithColor(mode ColorMode) *Writer {
	wr.color = mode
	return wr
}

// Answer is one answered question, shaped for stable JSON output.
type Answer struct {
	Cluster   string `json:"cluster"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Model     string `json:"model,omitempty"`
	TokensIn  int    `json:"tokens_in,omitempty"`
	TokensOut int    `json:"tokens_out,omitempty"`
}

// WriteAnswer outputs one answered question.
func (wr *Writer) WriteAnswer(a Answer) error {
	if wr.format == FormatJSON {
		return wr.WriteJSON(a)
	}
	if _, err := fmt.Fprintln(wr.w, a.Answer); err != nil {
		return err
	}
	if a.Model != "" {
		meta := fmt.Sprintf("[%s, %d tokens in, %d tokens out]", a.Model, a.TokensIn, a.TokensOut)
		_, err := fmt.Fprintln(wr.w, wr.paint(colorGray, meta))
		return err
	}
	return nil
}

// WriteClusters outputs the cluster listing.
func (wr *Writer) WriteClusters(clusters []eks.ClusterInfo) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(clusters)
	default:
		tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSTATUS\tVERSION\tLOG CATEGORIES")
		fmt.Fprintln(tw, "----\t------\t-------\t--------------")
		for _, c := range clusters {
			cats := "none"
			if len(c.EnabledCategories) > 0 {
				names := make([]string, len(c.EnabledCategories))
				for i, cat := range c.EnabledCategories {
					names[i] = cat.String()
				}
				cats = strings.Join(names, ",")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Status, c.Version, cats)
		}
		return tw.Flush()
	}
}

// WriteContextSummary outputs what the budgeter kept, before questions run.
func (wr *Writer) WriteContextSummary(cluster string, bc *budget.Context) error {
	if wr.format == FormatJSON {
		return wr.WriteJSON(struct {
			Cluster        string                     `json:"cluster"`
			Window         string                     `json:"window"`
			TotalEvents    int                        `json:"total_events"`
			RecordsKept    int                        `json:"records_kept"`
			Truncated      bool                       `json:"truncated"`
			CategoryCounts map[config.LogCategory]int `json:"category_counts"`
		}{cluster, bc.Window.String(), bc.TotalRecords, len(bc.Records), bc.Truncated, bc.CategoryCounts})
	}

	fmt.Fprintf(wr.w, "Cluster %s: %d events in %s\n", cluster, bc.TotalRecords, bc.Window)
	parts := make([]string, 0, len(bc.CategoryCounts))
	for _, cat := range bc.Categories() {
		parts = append(parts, fmt.Sprintf("%s=%d", cat, bc.CategoryCounts[cat]))
	}
	if len(parts) > 0 {
		fmt.Fprintf(wr.w, "By category: %s\n", strings.Join(parts, " "))
	}
	if bc.Truncated {
		fmt.Fprintln(wr.w, wr.paint(colorYellow,
			fmt.Sprintf("Context limited to the %d most recent events.", len(bc.Records))))
	}
	return nil
}

// WriteNote outputs a non-fatal finding, such as disabled categories.
func (wr *Writer) WriteNote(f *config.Failure) error {
	if wr.format == FormatJSON {
		return wr.WriteJSON(failureJSON(f))
	}
	_, err := fmt.Fprintln(wr.w, wr.paint(colorYellow, "note: "+noteText(f)))
	return err
}

// WriteFailure outputs a terminal failure with remediation guidance.
func (wr *Writer) WriteFailure(f *config.Failure) error {
	if wr.format == FormatJSON {
		return wr.WriteJSON(failureJSON(f))
	}
	if _, err := fmt.Fprintln(wr.w, wr.paint(colorRed, "error: "+f.Detail)); err != nil {
		return err
	}
	if hint := Remediation(f); hint != "" {
		_, err := fmt.Fprintln(wr.w, hint)
		return err
	}
	return nil
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v any) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func failureJSON(f *config.Failure) any {
	return struct {
		Kind        config.FailureKind   `json:"kind"`
		Detail      string               `json:"detail"`
		Categories  []config.LogCategory `json:"categories,omitempty"`
		Remediation string               `json:"remediation,omitempty"`
	}{f.Kind, f.Detail, f.Categories, Remediation(f)}
}

func noteText(f *config.Failure) string {
	if len(f.Categories) > 0 {
		return fmt.Sprintf("%s (%s)", f.Detail, f.CategoryNames())
	}
	return f.Detail
}
