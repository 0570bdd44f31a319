// Package templates renders the HTML served by the merge server.
package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
)

// ProfileOption is one entry of the profile select.
type ProfileOption struct {
	Name        string
	Description string
	Filter      string
}

// RunRow is one line of the recent runs table.
type RunRow struct {
	ID        string
	StartedAt time.Time
	Profile   string
	Sources   int
	RowsOut   int
	Status    string
	ErrorCode string
}

// IndexData feeds the upload page.
type IndexData struct {
	Profiles       []ProfileOption
	DefaultProfile string
	KeyColumn      string
	OutputName     string
	MaxFiles       int
	MaxFileSizeMB  int64
	Runs           []RunRow
}

const styles = `body{font-family:system-ui,sans-serif;max-width:56rem;margin:2rem auto;padding:0 1rem;color:#1f2937}
h1{font-size:1.5rem}fieldset{border:1px solid #d1d5db;border-radius:.5rem;padding:1rem;margin-bottom:1rem}
label{display:block;margin:.5rem 0 .25rem}input[type=text],select{width:100%;padding:.4rem}
button{padding:.5rem 1rem;margin-right:.5rem}table{width:100%;border-collapse:collapse;font-size:.875rem}
th,td{text-align:left;padding:.3rem;border-bottom:1px solid #e5e7eb}.muted{color:#6b7280;font-size:.875rem}
.alert-error{background:#fef2f2;border:1px solid #fca5a5;border-radius:.5rem;padding:.75rem;margin:1rem 0}
.failed{color:#b91c1c}`
// Index is the upload page: a multi-file form posting to /api/merge.
func Index(data IndexData) templ.Component {
	return layout("CSV Merge", templ.Join(
		keyNotice(data.KeyColumn),
		mergeForm(data),
		runsTable(data.Runs),
	))
}

func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w,
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`, templ.EscapeString(title), `</title><style>`, styles, `</style></head><body>`,
			`<h1>`, templ.EscapeString(title), `</h1>`,
		); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		return write(w, `</body></html>`)
	})
}

func keyNotice(keyColumn string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return write(w,
			`<p class="muted">Rows are merged on the <strong>`, templ.EscapeString(keyColumn),
			`</strong> column. Files are applied in the order selected; later files overwrite earlier values.</p>`,
		)
	})
}

func mergeForm(data IndexData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w,
			`<form method="post" action="/api/merge" enctype="multipart/form-data">`,
			`<fieldset><legend>Files</legend>`,
			`<input type="file" name="files" accept=".csv,text/csv" multiple required>`,
			fmt.Sprintf(`<p class="muted">Up to %d files, %d MB each.</p></fieldset>`, data.MaxFiles, data.MaxFileSizeMB),
			`<fieldset><legend>Options</legend>`,
		); err != nil {
			return err
		}
		if err := ProfileSelect(data.Profiles, data.DefaultProfile).Render(ctx, w); err != nil {
			return err
		}
		if err := write(w,
			`<label><input type="checkbox" name="no_filter" value="on"> Ignore the profile's filter</label>`,
			`<label for="key_column">Key column (optional)</label><input type="text" id="key_column" name="key_column">`,
		); err != nil {
			return err
		}
		if err := malformedSelect().Render(ctx, w); err != nil {
			return err
		}
		return write(w,
			`<label for="output_name">Output file name</label>`,
			`<input type="text" id="output_name" name="output_name" value="`, templ.EscapeString(data.OutputName), `">`,
			`</fieldset>`,
			`<button type="submit">Merge and download</button>`,
			`<button type="submit" formaction="/api/merge/preview">Preview</button></form>`,
		)
	})
}

// ProfileSelect renders the profile picker with the default option selected.
func ProfileSelect(profiles []ProfileOption, defaultProfile string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w, `<label for="profile">Profile</label><select id="profile" name="profile">`); err != nil {
			return err
		}
		for _, p := range profiles {
			selected := ""
			if p.Name == defaultProfile {
				selected = " selected"
			}
			label := p.Name
			if p.Description != "" {
				label += " - " + p.Description
			}
			if err := write(w,
				`<option value="`, templ.EscapeString(p.Name), `"`, selected, `>`,
				templ.EscapeString(label), `</option>`,
			); err != nil {
				return err
			}
		}
		return write(w, `</select>`)
	})
}

func malformedSelect() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return write(w,
			`<label for="malformed_rows">Malformed rows</label><select id="malformed_rows" name="malformed_rows">`,
			`<option value="">Profile default</option>`,
			`<option value="skip">Skip</option>`,
			`<option value="fail">Fail the merge</option></select>`,
		)
	})
}

func runsTable(runs []RunRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(runs) == 0 {
			return nil
		}
		if err := write(w,
			`<h2>Recent merges</h2><table><thead><tr>`,
			`<th>Started</th><th>Profile</th><th>Files</th><th>Rows</th><th>Status</th>`,
			`</tr></thead><tbody>`,
		); err != nil {
			return err
		}
		for _, run := range runs {
			if err := runRow(run).Render(ctx, w); err != nil {
				return err
			}
		}
		return write(w, `</tbody></table>`)
	})
}

func runRow(run RunRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		status := templ.EscapeString(run.Status)
		class := ""
		if run.ErrorCode != "" {
			status += " (" + templ.EscapeString(run.ErrorCode) + ")"
			class = ` class="failed"`
		}
		return write(w,
			`<tr title="`, templ.EscapeString(run.ID), `">`,
			`<td>`, run.StartedAt.Format("2006-01-02 15:04:05"), `</td>`,
			`<td>`, templ.EscapeString(run.Profile), `</td>`,
			fmt.Sprintf(`<td>%d</td><td>%d</td>`, run.Sources, run.RowsOut),
			`<td`, class, `>`, status, `</td></tr>`,
		)
	})
}

// ErrorAlert is the fragment returned to HTMX requests that fail.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w, `<div class="alert-error" role="alert"><p><strong>`, templ.EscapeString(message), `</strong></p>`); err != nil {
			return err
		}
		if action != "" {
			if err := write(w, `<p>`, templ.EscapeString(action), `</p>`); err != nil {
				return err
			}
		}
		if code != "" {
			if err := write(w, `<p class="muted">Error code: `, templ.EscapeString(code), `</p>`); err != nil {
				return err
			}
		}
		return write(w, `</div>`)
	})
}

// write emits parts in order and stops at the first error.
func write(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}
