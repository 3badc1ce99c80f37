package ui

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// RenderTable writes a bordered table to w. Used for application and
// deployment listings.
func RenderTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}
