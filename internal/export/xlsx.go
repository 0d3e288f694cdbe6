// Package export writes enrichment worklists as spreadsheets for the data
// team.
package export

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/flourish-retail/gapcore/internal/completeness"
)

var (
	priorityHeader = []string{"Rank", "Location ID", "Name", "Type", "City", "Score", "Grade", "Missing"}
	auditHeader    = []string{"Field", "Group", "Priority", "Filled %", "Missing", "Relevant", "Method", "Context"}
)

// WritePrioritiesXLSX writes the enrichment targets to a single
// "Priorities" sheet in the order given.
func WritePrioritiesXLSX(w io.Writer, targets []completeness.Target) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Priorities")
	if err != nil {
		return eris.Wrap(err, "export: add priorities sheet")
	}
	addHeader(sheet, priorityHeader)

	for i, t := range targets {
		row := sheet.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(t.Location.ID)
		row.AddCell().SetString(t.Location.Name)
		row.AddCell().SetString(string(t.Type))
		row.AddCell().SetString(t.City)
		row.AddCell().SetInt(t.Score)
		row.AddCell().SetString(string(t.Grade))
		row.AddCell().SetString(joinDimensions(t.Missing))
	}

	return eris.Wrap(f.Write(w), "export: write priorities")
}

// WriteAuditXLSX writes field coverage to a "Fields" sheet and the
// population counts and critical gaps to a "Summary" sheet.
func WriteAuditXLSX(w io.Writer, report completeness.AuditReport) error {
	f := xlsx.NewFile()

	fields, err := f.AddSheet("Fields")
	if err != nil {
		return eris.Wrap(err, "export: add fields sheet")
	}
	addHeader(fields, auditHeader)
	for _, c := range report.Fields {
		row := fields.AddRow()
		row.AddCell().SetString(c.DisplayName)
		row.AddCell().SetString(string(c.Group))
		row.AddCell().SetString(string(c.Priority))
		row.AddCell().SetInt(c.FilledPercent)
		row.AddCell().SetInt(c.Missing)
		row.AddCell().SetInt(c.RelevantTotal)
		row.AddCell().SetString(string(c.Method))
		row.AddCell().SetString(c.ContextNote)
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	for _, kv := range []struct {
		label string
		value int
	}{
		{"Total locations", report.Overview.TotalLocations},
		{"Shopping centres and retail parks", report.Overview.Destinations},
		{"Locations with websites", report.Overview.LocationsWithWebsites},
		{"Major destinations without website", report.Critical.MajorWithoutWebsite},
		{"Destinations without social media", report.Critical.DestinationsWithoutSocial},
		{"Destinations without parking data", report.Critical.DestinationsWithoutParking},
	} {
		row := summary.AddRow()
		row.AddCell().SetString(kv.label)
		row.AddCell().SetInt(kv.value)
	}

	return eris.Wrap(f.Write(w), "export: write audit")
}

func addHeader(sheet *xlsx.Sheet, cols []string) {
	style := xlsx.NewStyle()
	style.Font.Bold = true
	style.ApplyFont = true

	row := sheet.AddRow()
	for _, c := range cols {
		cell := row.AddCell()
		cell.SetString(c)
		cell.SetStyle(style)
	}
}

func joinDimensions(dims []completeness.Dimension) string {
	s := make([]string, len(dims))
	for i, d := range dims {
		s[i] = string(d)
	}
	return strings.Join(s, ", ")
}
