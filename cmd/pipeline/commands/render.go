package commands

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"example.com/endurance/internal/domain"
	"example.com/endurance/internal/pipeline"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func renderReport(w io.Writer, report *pipeline.Report) {
	if report == nil {
		return
	}

	summary := newTable(w)
	summary.SetTitle("%s run %s", report.Operation, report.RunID)
	summary.AppendHeader(table.Row{"Cleaned", "Appended", "Duplicates", "Serials", "Counter advance", "Duration"})
	serials := "-"
	if report.Appended > 0 {
		serials = strconv.FormatInt(report.FirstSerial, 10) + "-" + strconv.FormatInt(report.LastSerial, 10)
	}
	summary.AppendRow(table.Row{
		report.Cleaned,
		report.Appended,
		report.Duplicates,
		serials,
		report.Advance,
		report.Finished.Sub(report.Started).Round(time.Millisecond).String(),
	})
	summary.Render()

	if len(report.Metrics) > 0 {
		metrics := newTable(w)
		metrics.AppendHeader(table.Row{"Athlete", "Name", "Run km", "Weekly run km", "Run h", "Weekly run h", "Pace min/km", "Ride h", "Swim h", "Other h"})
		for _, m := range report.Metrics {
			pace := "-"
			if m.AvgRunPaceMinPerKm != nil {
				pace = strconv.FormatFloat(*m.AvgRunPaceMinPerKm, 'f', 2, 64)
			}
			metrics.AppendRow(table.Row{
				m.AthleteID, m.AthleteName,
				m.TotalRunDistanceKm, m.AvgWeeklyRunMileageKm,
				m.TotalRunHours, m.AvgWeeklyRunHours,
				pace,
				m.TotalRideHours, m.TotalSwimHours, m.TotalOtherHours,
			})
		}
		metrics.Render()
	}
	renderDivergences(w, report.Divergences)
}

func renderDivergences(w io.Writer, divergences []domain.CounterDivergence) {
	if len(divergences) == 0 {
		return
	}
	t := newTable(w)
	t.SetTitle("Counter divergences")
	t.AppendHeader(table.Row{"Athlete", "Metadata", "Master"})
	for _, d := range divergences {
		t.AppendRow(table.Row{d.AthleteID, d.Metadata, strings.Join(d.Master, ", ")})
	}
	t.Render()
}
