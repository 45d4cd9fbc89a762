package templates

import (
	"context"
	"strconv"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/a-h/templ"
)

// IndexData drives the upload page.
type IndexData struct {
	MaxFileSize int64
	Accept      string
	Sheet       string
}

// ResultData drives the result page and its HTMX fragment.
type ResultData struct {
	ID           string
	FileName     string
	Columns      []string
	Preview      [][]string
	TotalRows    int
	ChangedCells int
	Changes      []core.ColumnChanges
	DownloadURL  string
	ChangesURL   string
	ExpiresAt    time.Time
}

// IndexPage is the upload form.
func IndexPage(data IndexData) templ.Component {
	return Layout("Clean a spreadsheet", UploadForm(data))
}

// UploadForm posts a workbook to /clean.
func UploadForm(data IndexData) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<section class="card"><h1>Excel Cleaner: Remove Line Breaks &amp; Trim Whitespace</h1>`)
		h.raw(`<p>Every cell has its line breaks replaced by spaces and its leading and trailing whitespace removed. `)
		h.raw(`Column names are trimmed too.</p>`)
		h.raw(`<form method="post" action="/clean" enctype="multipart/form-data">`)
		h.raw(`<label for="file">Upload Excel file</label>`)
		h.raw(`<input id="file" type="file" name="file" required accept="`)
		h.text(data.Accept)
		h.raw(`">`)
		h.raw(`<label for="sheet">Worksheet (optional)</label>`)
		h.raw(`<input id="sheet" type="text" name="sheet" placeholder="first sheet" value="`)
		h.text(data.Sheet)
		h.raw(`">`)
		h.raw(`<button type="submit">Clean file</button></form>`)
		h.raw(`<p class="hint">Up to `)
		h.text(formatBytes(data.MaxFileSize))
		h.raw(`. Accepted: `)
		h.text(data.Accept)
		h.raw(`</p></section>`)
	})
}

// ResultPage is a full page showing a cleaned file.
func ResultPage(data ResultData) templ.Component {
	return Layout(data.FileName, ResultPanel(data))
}

// ResultPanel shows the preview, the change ledger and the download links.
func ResultPanel(data ResultData) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<section class="card" id="result">`)
		h.raw(`<div class="alert alert-success">File cleaned successfully!</div>`)
		h.raw(`<p class="summary"><strong>`)
		h.text(data.FileName)
		h.raw(`</strong>: `)
		h.text(strconv.Itoa(data.TotalRows))
		h.raw(` rows, `)
		h.text(strconv.Itoa(len(data.Columns)))
		h.raw(` columns, `)
		h.text(strconv.Itoa(data.ChangedCells))
		h.raw(` cells cleaned.</p>`)

		h.raw(`<p class="actions"><a class="button" href="`)
		h.text(data.DownloadURL)
		h.raw(`">Download Cleaned Excel File</a>`)
		if data.ChangedCells > 0 {
			h.raw(` <a class="button secondary" href="`)
			h.text(data.ChangesURL)
			h.raw(`">Download change report (CSV)</a>`)
		}
		h.raw(`</p>`)
		if !data.ExpiresAt.IsZero() {
			h.raw(`<p class="hint">Downloads available until `)
			h.text(data.ExpiresAt.Format("15:04:05 MST"))
			h.raw(`.</p>`)
		}

		h.raw(`<h2>Cleaned Data Preview</h2>`)
		if len(data.Preview) < data.TotalRows {
			h.raw(`<p class="hint">Showing the first `)
			h.text(strconv.Itoa(len(data.Preview)))
			h.raw(` of `)
			h.text(strconv.Itoa(data.TotalRows))
			h.raw(` rows.</p>`)
		}
		h.raw(`<div class="scroll"><table class="grid"><thead><tr><th>Row</th>`)
		for _, col := range data.Columns {
			h.raw(`<th>`)
			h.text(col)
			h.raw(`</th>`)
		}
		h.raw(`</tr></thead><tbody>`)
		for i, row := range data.Preview {
			h.raw(`<tr><td class="rownum">`)
			h.text(strconv.Itoa(i + core.HeaderRowOffset))
			h.raw(`</td>`)
			for _, cell := range row {
				h.raw(`<td>`)
				h.text(cell)
				h.raw(`</td>`)
			}
			h.raw(`</tr>`)
		}
		h.raw(`</tbody></table></div>`)

		h.raw(`<h2>Cells That Were Cleaned</h2>`)
		if len(data.Changes) == 0 {
			h.raw(`<div class="alert alert-info">No cleaning was needed: all cells were already clean!</div>`)
		}
		for _, entry := range data.Changes {
			h.raw(`<details open class="changes"><summary>`)
			h.text(entry.Column)
			h.raw(` <span class="count">(`)
			h.text(strconv.Itoa(len(entry.Changes)))
			h.raw(`)</span></summary><table class="grid"><thead><tr><th>Row</th><th>Original</th><th>Cleaned</th></tr></thead><tbody>`)
			for _, rec := range entry.Changes {
				h.raw(`<tr><td class="rownum">`)
				h.text(strconv.Itoa(rec.Row))
				h.raw(`</td><td class="pre">`)
				h.text(rec.Original)
				h.raw(`</td><td class="pre">`)
				h.text(rec.Cleaned)
				h.raw(`</td></tr>`)
			}
			h.raw(`</tbody></table></details>`)
		}
		h.raw(`</section>`)
	})
}

// ErrorPage shows an error with a link back to the upload form.
func ErrorPage(msg core.UserMessage) templ.Component {
	return Layout("Error", component(func(ctx context.Context, h *html) {
		h.raw(`<section class="card">`)
		h.render(ctx, ErrorAlert(msg.Message, msg.Action, msg.Code))
		h.raw(`<p><a class="button" href="/">Back to upload</a></p></section>`)
	}))
}

// HistoryPage lists recent clean runs.
func HistoryPage(runs []core.Run) templ.Component {
	return Layout("History", component(func(_ context.Context, h *html) {
		h.raw(`<section class="card"><h1>Recent clean runs</h1>`)
		if len(runs) == 0 {
			h.raw(`<p class="hint">No runs recorded.</p></section>`)
			return
		}
		h.raw(`<table class="grid"><thead><tr><th>When</th><th>File</th><th>Rows</th><th>Columns</th>`)
		h.raw(`<th>Cells cleaned</th><th>Duration</th></tr></thead><tbody>`)
		for _, run := range runs {
			h.raw(`<tr><td>`)
			h.text(run.CreatedAt.Format("2006-01-02 15:04:05"))
			h.raw(`</td><td>`)
			h.text(run.FileName)
			h.raw(`</td><td>`)
			h.text(strconv.Itoa(run.Rows))
			h.raw(`</td><td>`)
			h.text(strconv.Itoa(run.Columns))
			h.raw(`</td><td>`)
			h.text(strconv.Itoa(run.ChangedCells))
			h.raw(`</td><td>`)
			h.text((time.Duration(run.DurationMS) * time.Millisecond).String())
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table></section>`)
	}))
}

func formatBytes(n int64) string {
	const mb = 1 << 20
	if n >= mb {
		return strconv.FormatInt(n/mb, 10) + " MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}
