package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chatlens-ai/chatlens/internal/measure"
)

// OverviewRow is one evaluated conversation in the review overview. Matrix
// numbers are shown one-based; "-" marks an unset value.
type OverviewRow struct {
	ConversationID   string
	CaseName         string
	CaseNr           string
	PermutationNr    string
	RunNr            string
	Duration         string
	TraceCount       int
	MeasurementCount int
	ValidationOK     bool
}

// BuildOverview derives overview rows from conversation measurements,
// preserving their order.
func BuildOverview(items []measure.ConversationMeasurements) []OverviewRow {
	rows := make([]OverviewRow, 0, len(items))
	for _, cm := range items {
		row := OverviewRow{
			ConversationID:   cm.ConversationID,
			CaseName:         orDash(cm.CaseName),
			CaseNr:           oneBased(cm.CaseNr),
			PermutationNr:    oneBased(cm.PermutationNr),
			RunNr:            oneBased(cm.RunNr),
			Duration:         conversationDuration(cm),
			TraceCount:       len(cm.Traces),
			MeasurementCount: cm.MeasurementCount(),
			ValidationOK:     cm.ValidationOK(),
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteOverviewMarkdown writes the overview as a markdown table, for CI
// artifacts and PR comments.
func WriteOverviewMarkdown(rows []OverviewRow, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("# Evaluation Review\n\n")
	b.WriteString("| Conversation | Case | Case Nr | Permutation | Run | Duration | Traces | Measurements | Validation |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|\n")
	for _, row := range rows {
		validation := "OK"
		if !row.ValidationOK {
			validation = "NOK"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %d | %d | %s |\n",
			row.ConversationID, row.CaseName, row.CaseNr, row.PermutationNr,
			row.RunNr, row.Duration, row.TraceCount, row.MeasurementCount, validation)
	}

	return os.WriteFile(path, []byte(b.String()), 0644)
}

// conversationDuration is the wall time between the first and last trace
// start.
func conversationDuration(cm measure.ConversationMeasurements) string {
	if len(cm.Traces) == 0 {
		return "-"
	}
	first := cm.Traces[0].Trace.StartedAt
	last := cm.Traces[len(cm.Traces)-1].Trace.StartedAt
	return last.Sub(first).Round(time.Millisecond).String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func oneBased(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *n+1)
}
