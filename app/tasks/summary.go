package tasks

import (
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Summary is the per-stage outcome printed after each stage.
type Summary struct {
	Type      TaskType
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Bytes     int64
	Duration  time.Duration
	Output    string
}

func RenderSummaries(w io.Writer, summaries ...Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage", "Processed", "Succeeded", "Failed", "Skipped", "Size", "Duration", "Output"})

	for _, s := range summaries {
		size := "-"
		if s.Bytes > 0 {
			size = humanize.Bytes(uint64(s.Bytes))
		}
		t.AppendRow(table.Row{
			string(s.Type),
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Succeeded),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Skipped),
			size,
			s.Duration.Round(time.Millisecond).String(),
			s.Output,
		})
	}

	t.Render()
}
