package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"reelforge/internal/pipeline"
)

// runTable lists runs with the short form of the run ID and the live
// progress fraction.
func runTable(statuses []*pipeline.RunStatus) string {
	tw := newTableWriter([]string{"RUN", "STATUS", "STAGE", "PROGRESS", "UPDATED"}, 3)
	for _, status := range statuses {
		tw.AppendRow(table.Row{
			shortID(status.RunID),
			status.Status,
			status.CurrentStage,
			fmt.Sprintf("%3.0f%%", status.Progress*100),
			status.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return tw.Render()
}

// artifactTable lists a run's checkpointed artifacts in stage order.
func artifactTable(artifacts []pipeline.ArtifactInfo) string {
	tw := newTableWriter([]string{"STAGE", "ARTIFACT", "SEQ", "AT"}, 2)
	for _, artifact := range artifacts {
		tw.AppendRow(table.Row{
			artifact.Stage,
			artifact.Type,
			artifact.Seq,
			artifact.CreatedAt.Local().Format("15:04:05"),
		})
	}
	return tw.Render()
}

// newTableWriter applies the shared rounded style. numericCol is the
// zero-based index of the one right-aligned column, or -1 for none.
func newTableWriter(headers []string, numericCol int) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i == numericCol {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		}
	}
	tw.SetColumnConfigs(configs)
	return tw
}
