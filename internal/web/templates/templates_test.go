package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sqlscript/internal/core"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, c.Render(context.Background(), &sb))
	return sb.String()
}

func TestLayout_WrapsBody(t *testing.T) {
	page := render(t, Layout("a <b> title", ErrorAlert("boom", "", "")))

	assert.True(t, strings.HasPrefix(strings.ToLower(page), "<!doctype html>"))
	assert.Contains(t, page, "<title>a &lt;b&gt; title</title>")
	assert.Contains(t, page, `<strong>boom</strong>`)
	assert.True(t, strings.HasSuffix(page, "</body></html>"))
}

func TestErrorAlert_OptionalParts(t *testing.T) {
	full := render(t, ErrorAlert("Missing columns", "Check the header", "VAL004"))
	assert.Contains(t, full, "<p>Check the header</p>")
	assert.Contains(t, full, `<span class="code">VAL004</span>`)

	bare := render(t, ErrorAlert("Something failed", "", ""))
	assert.NotContains(t, bare, "<p>")
	assert.NotContains(t, bare, `class="code"`)
}

func TestIndex_EchoesFormAndEscapes(t *testing.T) {
	page := render(t, Index(IndexData{
		Form: FormData{TableName: `t"x`, Columns: "id, name", Mode: "plain", BatchSize: "500"},
		Error: &core.UserMessage{Message: "Bad <input>", Code: "VAL001"},
		Recent: []core.Artifact{{
			Name:       "users_inserts.sql",
			TableName:  "users",
			Mode:       core.ModeGuarded,
			Statements: 3,
			CreatedAt:  time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC),
		}},
	}))

	assert.Contains(t, page, `value="t&#34;x"`)
	assert.Contains(t, page, `value="id, name"`)
	assert.Contains(t, page, `<option value="plain" selected>`)
	assert.Contains(t, page, `<option value="guarded">`)
	assert.Contains(t, page, `value="500"`)
	assert.Contains(t, page, "Bad &lt;input&gt;")
	assert.Contains(t, page, `<a href="/download/users_inserts.sql">users_inserts.sql</a>`)
	assert.Contains(t, page, "<td>2024-01-02 03:04</td>")
}

func TestIndex_NoRecentTable(t *testing.T) {
	page := render(t, Index(IndexData{Form: FormData{Mode: "guarded"}}))

	assert.NotContains(t, page, "Recent scripts")
	assert.NotContains(t, page, `role="alert"`)
}

func TestResult_PreviewAndTruncation(t *testing.T) {
	res := &core.Result{
		Artifact: core.Artifact{Name: "users_inserts.sql", TableName: "users"},
		Total:    3,
		Preview:  []string{"INSERT INTO users (name) VALUES ('O''Neil');", "INSERT INTO users (name) VALUES ('x');"},
	}
	page := render(t, Result(ResultData{Result: res, DownloadURL: DownloadURL(res.Artifact.Name)}))

	assert.Contains(t, page, "<title>users - script generated</title>")
	assert.Contains(t, page, "Generated 3 statements for table <strong>users</strong>")
	assert.Contains(t, page, `href="/download/users_inserts.sql" download`)
	assert.Contains(t, page, "Showing the first 2 statements.")
	assert.Contains(t, page, "VALUES (&#39;O&#39;&#39;Neil&#39;);\nINSERT")

	res.Total = 2
	page = render(t, Result(ResultData{Result: res, DownloadURL: DownloadURL(res.Artifact.Name)}))
	assert.NotContains(t, page, "Showing the first")
}

func TestDownloadURL_EscapesName(t *testing.T) {
	assert.Equal(t, "/download/my%20file.sql", DownloadURL("my file.sql"))
}
