package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepscout/internal/transport"
)

const report = "## Findings\n\nReusable boosters land propulsively.\n\n## Sources\n\n- [1] example.com"

func TestFromMessages(t *testing.T) {
	msgs := []transport.Message{
		{ID: "h1", Type: transport.RoleHuman, Content: "how do reusable rockets land?"},
		{ID: "a1", Type: transport.RoleAI, Content: "first answer"},
		{ID: "h2", Type: transport.RoleHuman, Content: "more detail please"},
		{ID: "a2", Type: transport.RoleAI, Content: report},
	}

	opts := FromMessages(msgs)
	assert.Equal(t, report, opts.Content, "latest agent answer wins")
	assert.Equal(t, "how do reusable rockets land?", opts.Title, "first question wins")
	assert.Equal(t, FormatMarkdown, opts.Format)
	assert.True(t, opts.IncludeSources)
	assert.True(t, opts.IncludeMetadata)
}

func TestFromMessages_Defaults(t *testing.T) {
	opts := FromMessages(nil)
	assert.Equal(t, "Research Report", opts.Title)
	assert.Empty(t, opts.Content)

	long := strings.Repeat("q", 60)
	opts = FromMessages([]transport.Message{{Type: transport.RoleHuman, Content: long}})
	assert.Equal(t, strings.Repeat("q", 50)+"...", opts.Title)
}

func TestRender_Markdown(t *testing.T) {
	art, err := Render(Options{
		Content:         report,
		Title:           "Rocket Landing",
		Format:          FormatMarkdown,
		IncludeSources:  true,
		IncludeMetadata: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "text/markdown", art.MIME)
	assert.True(t, strings.HasPrefix(art.Filename, "rocket-landing-"))
	assert.True(t, strings.HasSuffix(art.Filename, ".md"))

	body := string(art.Data)
	assert.Contains(t, body, "# Rocket Landing")
	assert.Contains(t, body, "Exported ")
	assert.Contains(t, body, "## Sources")
}

func TestRender_MarkdownWithoutSourcesOrMetadata(t *testing.T) {
	art, err := Render(Options{Content: report, Title: "T", Format: FormatMarkdown})
	require.NoError(t, err)

	body := string(art.Data)
	assert.NotContains(t, body, "## Sources")
	assert.NotContains(t, body, "Exported ")
	assert.Contains(t, body, "land propulsively")
}

func TestRender_HTML(t *testing.T) {
	art, err := Render(Options{
		Content:        report,
		Title:          "Rocket Landing",
		Format:         FormatHTML,
		IncludeSources: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "text/html", art.MIME)
	body := string(art.Data)
	assert.Contains(t, body, "<title>Rocket Landing</title>")
	assert.Contains(t, body, "<h2>Findings</h2>")
}

func TestRender_JSON(t *testing.T) {
	art, err := Render(Options{
		Content:         report,
		Title:           "Rocket Landing",
		Format:          FormatJSON,
		IncludeSources:  true,
		IncludeMetadata: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", art.MIME)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(art.Data, &payload))
	assert.Equal(t, "Rocket Landing", payload["title"])
	meta, ok := payload["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, FormatJSON, meta["format"])
	assert.NotZero(t, meta["word_count"])

	// Metadata object is omitted when not requested.
	art, err = Render(Options{Content: report, Format: FormatJSON, IncludeSources: true})
	require.NoError(t, err)
	payload = map[string]any{}
	require.NoError(t, json.Unmarshal(art.Data, &payload))
	assert.NotContains(t, payload, "metadata")
}

func TestRender_Errors(t *testing.T) {
	_, err := Render(Options{Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = Render(Options{Content: "x", Format: "pdf"})
	assert.ErrorContains(t, err, "unknown format")
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "how-do-rockets-land", slug("How do rockets land?"))
	assert.Equal(t, "research-report", slug("???"))
}
