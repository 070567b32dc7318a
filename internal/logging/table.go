// This file contains the table formatting used by the session report for
// effect parameters (Value → Default).

package logging

import (
	"fmt"
	"math"
	"strings"
)

// TableRow represents a single row in a parameter table.
// Values are pre-formatted strings to allow for mixed formatting (decimals, integers, enums).
type TableRow struct {
	Label  string   // Row label, e.g., "passfilter.cutoff"
	Values []string // One value per column (Value, Default)
	Unit   string   // Unit suffix, e.g., "Hz", "ns", "" for unitless
	Note   string   // Optional note (only shown if non-empty)
}

// Table formats aligned columns.
// Handles variable column widths, missing values, and an optional note column.
type Table struct {
	Headers []string   // Column headers, e.g., ["Value", "Default"]
	Rows    []TableRow // Data rows
}

// String renders the table with aligned columns.
// - Labels are left-aligned
// - Values are right-aligned within their column
// - Units are appended after the last value column
// - Note column only shown if any row has one
func (t *Table) String() string {
	if len(t.Rows) == 0 {
		return ""
	}

	hasNote := false
	for _, row := range t.Rows {
		if row.Note != "" {
			hasNote = true
			break
		}
	}

	labelWidth := 0
	for _, row := range t.Rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
	}

	// Value column widths (one per header)
	valueWidths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		valueWidths[i] = len(header)
	}
	for _, row := range t.Rows {
		for i, val := range row.Values {
			if i < len(valueWidths) && len(val) > valueWidths[i] {
				valueWidths[i] = len(val)
			}
		}
	}

	unitWidth := 0
	for _, row := range t.Rows {
		if len(row.Unit) > unitWidth {
			unitWidth = len(row.Unit)
		}
	}

	var sb strings.Builder

	// Header row
	var line strings.Builder
	line.WriteString(strings.Repeat(" ", labelWidth+2))
	for i, header := range t.Headers {
		line.WriteString(fmt.Sprintf("%*s  ", valueWidths[i], header))
	}
	if unitWidth > 0 {
		line.WriteString(strings.Repeat(" ", unitWidth+1))
	}
	if hasNote {
		line.WriteString("Note")
	}
	writeLine(&sb, line.String())

	for _, row := range t.Rows {
		line.Reset()
		line.WriteString(fmt.Sprintf("%-*s  ", labelWidth, row.Label))

		for i := 0; i < len(t.Headers); i++ {
			val := MissingValue
			if i < len(row.Values) && row.Values[i] != "" {
				val = row.Values[i]
			}
			line.WriteString(fmt.Sprintf("%*s  ", valueWidths[i], val))
		}

		if unitWidth > 0 {
			line.WriteString(fmt.Sprintf("%-*s ", unitWidth, row.Unit))
		}
		if hasNote {
			line.WriteString(row.Note)
		}
		writeLine(&sb, line.String())
	}

	return sb.String()
}

// writeLine appends line without trailing padding.
func writeLine(sb *strings.Builder, line string) {
	sb.WriteString(strings.TrimRight(line, " "))
	sb.WriteString("\n")
}

// =============================================================================
// Value Formatting Helpers
// =============================================================================

// MissingValue is the placeholder for unavailable values
const MissingValue = "-"

// formatValue formats a numeric value with appropriate precision.
// Handles:
// - Regular floats: formatted to specified decimal places
// - Very small values (< 0.0001): scientific notation
// - NaN/Inf: returns MissingValue
func formatValue(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}

	if value != 0 && math.Abs(value) < 0.0001 {
		return fmt.Sprintf("%.2e", value)
	}

	return fmt.Sprintf("%.*f", decimals, value)
}

// =============================================================================
// Table Builder Helpers
// =============================================================================

// NewParamTable creates a Table with Value/Default headers.
func NewParamTable() *Table {
	return &Table{
		Headers: []string{"Value", "Default"},
		Rows:    make([]TableRow, 0),
	}
}

// AddRow adds a row to the table with pre-formatted values.
func (t *Table) AddRow(label string, values []string, unit string, note string) {
	t.Rows = append(t.Rows, TableRow{
		Label:  label,
		Values: values,
		Unit:   unit,
		Note:   note,
	})
}

// AddParamRow adds a row with a value and its default, noting when they differ.
func (t *Table) AddParamRow(label string, value, def float64, decimals int, unit string) {
	note := ""
	if value != def {
		note = "changed"
	}
	t.Rows = append(t.Rows, TableRow{
		Label:  label,
		Values: []string{formatValue(value, decimals), formatValue(def, decimals)},
		Unit:   unit,
		Note:   note,
	})
}
