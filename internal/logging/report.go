// This file renders the session report written after playback with --logs.

package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/fxplay/internal/config"
	"github.com/linuxmatters/fxplay/internal/effects"
	"github.com/linuxmatters/fxplay/internal/graph"
	"github.com/linuxmatters/fxplay/internal/player"
	"github.com/linuxmatters/fxplay/internal/stream"
)

// writeSection writes a section header with title and dashed underline.
// The underline length matches the title length.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// ReportData contains all the information needed to generate a session report
type ReportData struct {
	Config  *config.Config
	Layout  graph.Layout
	Skipped []graph.Skip
	Session player.Session
	Streams stream.Stats
	Err     error // Playback error, if the session ended with one
}

// paramFormat controls how a parameter is shown in the effects table.
type paramFormat struct {
	decimals int
	unit     string
}

var paramFormats = map[string]paramFormat{
	effects.ParamCutoff:    {0, "Hz"},
	effects.ParamFrequency: {0, "Hz"},
	effects.ParamWidth:     {0, "Hz"},
	effects.ParamDelay:     {0, "ns"},
}

func formatFor(param string) paramFormat {
	if f, ok := paramFormats[param]; ok {
		return f
	}
	return paramFormat{decimals: 2}
}

// ReportPath returns the report location for a session inside dir.
func ReportPath(dir string, data ReportData) string {
	return filepath.Join(dir, "fxplay-"+data.Session.ID.String()+".log")
}

// GenerateReport writes the session report to dir and returns its path.
// The report filename is fxplay-<session>.log
func GenerateReport(dir string, data ReportData) (string, error) {
	logPath := ReportPath(dir, data)

	f, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	if err := WriteReport(f, data); err != nil {
		return "", err
	}
	return logPath, f.Close()
}

// WriteReport renders the session report.
//
// Report structure:
// 1. Header - source, mode and session identity
// 2. Playback Summary - timings, outcome and speed
// 3. Pipeline - chain layout and skipped effects
// 4. Effects - enabled effects with Value/Default tables
// 5. Streams - discovered streams and how they were handled
func WriteReport(w io.Writer, data ReportData) error {
	if data.Config == nil {
		return errors.New("report needs a configuration")
	}

	writeReportHeader(w, data)
	writePlaybackSummary(w, data)
	writePipeline(w, data)
	writeEffects(w, data.Config)
	writeStreams(w, data.Streams)
	return nil
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// writeReportHeader outputs the report header with source info and session identity.
func writeReportHeader(w io.Writer, data ReportData) {
	fmt.Fprintln(w, "fxplay Session Report")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintf(w, "Session: %s\n", data.Session.ID)
	fmt.Fprintf(w, "Source: %s\n", data.Config.Source)
	fmt.Fprintf(w, "URI: %s\n", data.Config.URI)
	fmt.Fprintf(w, "Mode: %s\n", data.Config.Mode)
	if !data.Session.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started: %s\n", data.Session.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintln(w, "")
}

// writePlaybackSummary outputs how long playback ran and how it ended.
func writePlaybackSummary(w io.Writer, data ReportData) {
	writeSection(w, "Playback Summary")

	s := data.Session
	if !s.StartedAt.IsZero() && !s.EndedAt.IsZero() {
		fmt.Fprintf(w, "Duration: %s\n", formatDuration(s.EndedAt.Sub(s.StartedAt)))
	}
	fmt.Fprintf(w, "Outcome:  %s\n", s.Outcome)
	if data.Err != nil {
		fmt.Fprintf(w, "Error:    %v\n", data.Err)
	}

	cfg := data.Config
	switch {
	case !cfg.SpeedSet:
		fmt.Fprintf(w, "Speed:    %s (normal)\n", formatValue(cfg.Speed, 2)+"x")
	case s.RateApplied:
		fmt.Fprintf(w, "Speed:    %s (applied)\n", formatValue(cfg.Speed, 2)+"x")
	default:
		fmt.Fprintf(w, "Speed:    %s (not applied)\n", formatValue(cfg.Speed, 2)+"x")
	}
	fmt.Fprintln(w, "")
}

// writePipeline outputs the chain layout and any effect left out of it.
func writePipeline(w io.Writer, data ReportData) {
	writeSection(w, "Pipeline")

	fmt.Fprintf(w, "Audio: %s\n", strings.Join(data.Layout.Audio, " → "))
	if len(data.Layout.Video) > 0 {
		fmt.Fprintf(w, "Video: %s\n", strings.Join(data.Layout.Video, " → "))
	}
	for _, skip := range data.Skipped {
		fmt.Fprintf(w, "Skipped: %s (%v)\n", skip.Effect, skip.Err)
	}
	fmt.Fprintln(w, "")
}

// writeEffects outputs a parameter table for each enabled effect, audio first.
func writeEffects(w io.Writer, cfg *config.Config) {
	writeSection(w, "Effects")

	enabled := append(cfg.EnabledEffects(effects.StageAudio), cfg.EnabledEffects(effects.StageVideo)...)
	if len(enabled) == 0 {
		fmt.Fprintln(w, "none")
		fmt.Fprintln(w, "")
		return
	}

	for _, id := range enabled {
		e := effects.MustLookup(id)
		table := NewParamTable()
		for _, p := range e.Params {
			v, _ := cfg.Value(id, p.Name)
			if id == effects.PassFilter && p.Name == effects.ParamMode {
				table.AddRow(p.Name, []string{effects.PassMode(v).String(), effects.PassMode(p.Default).String()}, "", "")
				continue
			}
			f := formatFor(p.Name)
			table.AddParamRow(p.Name, v, p.Default, f.decimals, f.unit)
		}
		fmt.Fprintf(w, "%s (%s, %s)\n", id, e.Stage, e.Factory)
		fmt.Fprint(w, table.String())
		fmt.Fprintln(w, "")
	}
}

// writeStreams outputs the streams discovered by the source.
func writeStreams(w io.Writer, stats stream.Stats) {
	writeSection(w, "Streams")

	attached := make([]string, len(stats.Attached))
	for i, k := range stats.Attached {
		attached[i] = k.String()
	}
	if len(attached) == 0 {
		attached = []string{"none"}
	}
	fmt.Fprintf(w, "Attached:         %s\n", strings.Join(attached, ", "))
	fmt.Fprintf(w, "Already attached: %d\n", stats.AlreadyAttached)
	fmt.Fprintf(w, "Ignored:          %d\n", stats.Ignored)
	fmt.Fprintf(w, "Failed:           %d\n", stats.Failed)
}
