// Package templates holds the templ components of the web UI.
//
// Components are written in the .templ files next to this one; the
// matching _templ.go files are generated with `templ generate`.
package templates

import (
	"net/url"
	"strings"

	"github.com/JonMunkholm/sqlscript/internal/core"
)

// FormData holds the values echoed back into the upload form.
type FormData struct {
	TableName string
	Columns   string
	Mode      string
	BatchSize string
}

// IndexData is the view model of the upload page.
type IndexData struct {
	Form   FormData
	Error  *core.UserMessage
	Recent []core.Artifact
}

// ResultData is the view model of the result page.
type ResultData struct {
	Result      *core.Result
	DownloadURL string
}

// modeOptions is the order modes appear in the form's select.
var modeOptions = []core.Mode{core.ModeGuarded, core.ModePlain}

// DownloadURL returns the download route for a stored script.
func DownloadURL(name string) string {
	return "/download/" + url.PathEscape(name)
}

func resultTitle(d ResultData) string {
	return d.Result.Artifact.TableName + " - script generated"
}

func previewText(statements []string) string {
	return strings.Join(statements, "\n")
}

func truncated(d ResultData) bool {
	return len(d.Result.Preview) < d.Result.Total
}
