package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mandelmovie/coordinator"
	"mandelmovie/misc"
	"mandelmovie/task"
)

func printMovieSummary(out io.Writer, report coordinator.MovieReport) {
	style := table.StyleDefault
	if isTerminal(out) {
		style = table.StyleRounded
	}

	result := report.Result
	rows := [][]string{
		{"Run", result.RunID},
		{"Folder", report.RunDir},
		{"Frames attempted", strconv.Itoa(result.Attempted())},
		{"Frames resumed", strconv.Itoa(result.Skipped)},
		{"Frames succeeded", strconv.Itoa(result.Succeeded())},
		{"Frames failed", failedSummary(result.Failed)},
		{"Peak running", strconv.Itoa(result.PeakRunning)},
		{"Elapsed", result.Elapsed.Round(time.Millisecond).String()},
		{"Movie", encodingSummary(report)},
	}
	fmt.Fprintln(out, renderTable(style, []string{"Summary", ""}, rows))

	if len(result.Failed) == 0 {
		return
	}
	var failures [][]string
	for _, frameTask := range result.Tasks {
		if frameTask.Status != task.Failed {
			continue
		}
		message := ""
		if frameTask.Err != nil {
			message = frameTask.Err.Error()
		}
		failures = append(failures, []string{
			strconv.Itoa(frameTask.Frame.Index),
			strconv.FormatFloat(frameTask.Frame.Scale, 'g', 6, 64),
			errorKind(frameTask.Err),
			message,
		})
	}
	fmt.Fprintln(out, renderTable(style, []string{"Frame", "Scale", "Kind", "Error"}, failures))
}

func failedSummary(failed []int) string {
	if len(failed) == 0 {
		return "0"
	}
	indices := make([]string, len(failed))
	for i, index := range failed {
		indices[i] = strconv.Itoa(index)
	}
	return fmt.Sprintf("%d (%s)", len(failed), strings.Join(indices, ", "))
}

var errorKinds = []error{misc.ErrConfiguration, misc.ErrWorkerFailure, misc.ErrResourceExhaustion, misc.ErrEncoding}

// errorKind names the error kind of err, "Worker Failure" for example.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return cases.Title(language.Und).String(kind.Error())
		}
	}
	return "Unknown"
}

func encodingSummary(report coordinator.MovieReport) string {
	switch {
	case report.Partial():
		return fmt.Sprintf("%s (partial: frames %d-%d of %d)", report.MoviePath, report.FirstFrame, report.LastFrame, report.Result.Attempted())
	case report.Encoded:
		return report.MoviePath
	case report.EncodeErr != nil:
		return report.EncodeErr.Error()
	default:
		return "not generated"
	}
}

func renderTable(style table.Style, headers []string, rows [][]string) string {
	columns := len(headers)
	tw := table.NewWriter()
	tw.SetStyle(style)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)
	return tw.Render()
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
