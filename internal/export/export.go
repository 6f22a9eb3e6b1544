// Package export renders a finished research answer into a downloadable
// report artifact in markdown, HTML, or JSON form.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"deepscout/internal/logging"
	"deepscout/internal/transport"
)

// Report formats.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatJSON     = "json"
)

const (
	defaultTitle   = "Research Report"
	maxExportTitle = 50
)

// ErrEmptyContent is returned when there is no answer to export.
var ErrEmptyContent = errors.New("export: no report content")

// Options selects what goes into the artifact.
type Options struct {
	Content         string
	Title           string
	Format          string
	IncludeSources  bool
	IncludeMetadata bool
}

// Artifact is a rendered report ready to write to disk.
type Artifact struct {
	Filename string
	MIME     string
	Data     []byte
}

// Metadata accompanies the report when requested.
type Metadata struct {
	Title      string    `json:"title"`
	ExportedAt time.Time `json:"exported_at"`
	Format     string    `json:"format"`
	WordCount  int       `json:"word_count"`
}

// FromMessages derives default options from a conversation log: the
// latest agent answer as content, the first question as title.
func FromMessages(messages []transport.Message) Options {
	opts := Options{
		Title:           defaultTitle,
		Format:          FormatMarkdown,
		IncludeSources:  true,
		IncludeMetadata: true,
	}
	if m, ok := transport.LastAIMessage(messages); ok {
		opts.Content = m.Content
	}
	for _, m := range messages {
		if m.Type == transport.RoleHuman && strings.TrimSpace(m.Content) != "" {
			opts.Title = truncateTitle(m.Content)
			break
		}
	}
	return opts
}

// Render produces the artifact for the given options.
func Render(opts Options) (Artifact, error) {
	content := strings.TrimSpace(opts.Content)
	if content == "" {
		return Artifact{}, ErrEmptyContent
	}
	if opts.Title == "" {
		opts.Title = defaultTitle
	}
	if !opts.IncludeSources {
		content = stripSources(content)
	}

	meta := Metadata{
		Title:      opts.Title,
		ExportedAt: time.Now(),
		Format:     opts.Format,
		WordCount:  len(strings.Fields(content)),
	}

	var (
		art Artifact
		err error
	)
	switch opts.Format {
	case FormatMarkdown, "":
		art = renderMarkdown(content, meta, opts.IncludeMetadata)
	case FormatHTML:
		art, err = renderHTML(content, meta)
	case FormatJSON:
		art, err = renderJSON(content, meta, opts.IncludeMetadata)
	default:
		return Artifact{}, fmt.Errorf("export: unknown format %q", opts.Format)
	}
	if err != nil {
		return Artifact{}, err
	}

	logging.Get(logging.CategoryExport).Info("rendered %s report %q (%d bytes)", meta.Format, meta.Title, len(art.Data))
	return art, nil
}

func renderMarkdown(content string, meta Metadata, withMeta bool) Artifact {
	var b strings.Builder
	if withMeta {
		b.WriteString("# " + meta.Title + "\n\n")
		b.WriteString(fmt.Sprintf("> Exported %s | %d words\n\n", meta.ExportedAt.Format("2006-01-02 15:04"), meta.WordCount))
	}
	b.WriteString(content)
	b.WriteString("\n")
	return Artifact{
		Filename: filename(meta, "md"),
		MIME:     "text/markdown",
		Data:     []byte(b.String()),
	}
}

func renderHTML(content string, meta Metadata) (Artifact, error) {
	md := goldmark.New(goldmark.WithRendererOptions(gmhtml.WithHardWraps()))
	var body bytes.Buffer
	if err := md.Convert([]byte(content), &body); err != nil {
		return Artifact{}, fmt.Errorf("export: render html: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<title>" + meta.Title + "</title>\n")
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")

	return Artifact{
		Filename: filename(meta, "html"),
		MIME:     "text/html",
		Data:     []byte(b.String()),
	}, nil
}

func renderJSON(content string, meta Metadata, withMeta bool) (Artifact, error) {
	payload := map[string]any{
		"title":   meta.Title,
		"content": content,
	}
	if withMeta {
		payload["metadata"] = meta
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("export: render json: %w", err)
	}
	return Artifact{
		Filename: filename(meta, "json"),
		MIME:     "application/json",
		Data:     data,
	}, nil
}

// filename builds "slug-of-title-20060102-150405.ext".
func filename(meta Metadata, ext string) string {
	return fmt.Sprintf("%s-%s.%s", slug(meta.Title), meta.ExportedAt.Format("20060102-150405"), ext)
}

func slug(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "research-report"
	}
	return s
}

// stripSources drops the trailing sources section the answer pipeline
// appends, for exports that only want the report body.
func stripSources(content string) string {
	for _, heading := range []string{"\n## Sources", "\n**Sources**", "\n## References"} {
		if i := strings.Index(content, heading); i >= 0 {
			return strings.TrimSpace(content[:i])
		}
	}
	return content
}

func truncateTitle(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxExportTitle {
		return text
	}
	return string(runes[:maxExportTitle]) + "..."
}
