package markdown

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/alecthomas/chroma"
	chromahtml "github.com/alecthomas/chroma/formatters/html"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// defaultLanguage is displayed (and used for lexer lookup) when a code
// segment carries no language tag.
const defaultLanguage = "text"

// lineNumberThreshold is the number of lines above which code blocks get a
// line-number gutter, and above which inline code spans are promoted to full
// blocks.
const lineNumberThreshold = 5

const chromaStyle = "monokai"

const pendingIndicatorHTML = `<div class="thinking-indicator">` +
	`<span class="dot"></span><span class="dot"></span><span class="dot"></span>` +
	`<span>Thinking...</span></div>`

const streamCaretHTML = `<span class="stream-caret"></span>`

// Renderer converts message content into HTML. It is stateless per call:
// every invocation re-segments the full content string, so re-rendering the
// same snapshot twice yields identical output.
type Renderer struct {
	md    goldmark.Markdown
	style *chroma.Style
}

// NewRenderer builds a Renderer with GFM prose support and chroma-based
// syntax highlighting.
func NewRenderer() Renderer {
	style := styles.Get(chromaStyle)
	if style == nil {
		style = styles.Fallback
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(highlighting.WithStyle(chromaStyle)),
		),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(externalLinkTransformer{}, 100)),
		),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(&codeSpanRenderer{style: style}, 100)),
		),
	)

	return Renderer{md: md, style: style}
}

// Render produces the HTML for a message body. While content is streaming and
// still empty it renders a pending indicator instead of segmenting; once
// content exists a blinking caret is appended until the stream ends.
func (r Renderer) Render(content string, streaming bool) (template.HTML, error) {
	if streaming && content == "" {
		return pendingIndicatorHTML, nil
	}

	var sb strings.Builder
	for _, seg := range Segments(content, streaming) {
		switch seg.Kind {
		case SegmentCode:
			block, err := r.codeBlock(seg.Language, seg.Text)
			if err != nil {
				return "", err
			}
			sb.WriteString(block)
		case SegmentProse:
			var buf bytes.Buffer
			if err := r.md.Convert([]byte(seg.Text), &buf); err != nil {
				return "", fmt.Errorf("failed to convert markdown: %w", err)
			}
			sb.Write(buf.Bytes())
		}
	}

	if streaming && content != "" {
		sb.WriteString(streamCaretHTML)
	}

	return template.HTML(sb.String()), nil //nolint:gosec // output of goldmark/chroma, inputs escaped
}

// codeBlock renders a titled, syntax-highlighted code block. The title bar
// shows the language tag, and a line-number gutter appears only for blocks
// spanning more than lineNumberThreshold lines.
func (r Renderer) codeBlock(language, code string) (string, error) {
	lang := strings.TrimSpace(language)
	if lang == "" {
		lang = defaultLanguage
	}

	highlighted, err := highlight(code, lang, r.style, lineCount(code) > lineNumberThreshold)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(`<div class="code-block">`)
	sb.WriteString(`<div class="code-block-header">`)
	sb.WriteString(template.HTMLEscapeString(lang))
	sb.WriteString(`</div>`)
	sb.WriteString(highlighted)
	sb.WriteString(`</div>`)
	return sb.String(), nil
}

func highlight(code, language string, style *chroma.Style, lineNumbers bool) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("failed to tokenise code: %w", err)
	}

	formatter := chromahtml.New(chromahtml.WithLineNumbers(lineNumbers))
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", fmt.Errorf("failed to format code: %w", err)
	}
	return buf.String(), nil
}

func lineCount(s string) int {
	return strings.Count(s, "\n") + 1
}

// externalLinkTransformer makes every link open in a new browsing context
// without handing that context a window.opener reference.
type externalLinkTransformer struct{}

func (externalLinkTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if link, ok := n.(*ast.Link); ok {
			link.SetAttributeString("target", []byte("_blank"))
			link.SetAttributeString("rel", []byte("noopener noreferrer"))
		}
		return ast.WalkContinue, nil
	})
}

// codeSpanRenderer renders inline code spans, promoting any span longer than
// lineNumberThreshold lines to a full highlighted block.
type codeSpanRenderer struct {
	style *chroma.Style
}

func (r *codeSpanRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindCodeSpan, r.renderCodeSpan)
}

func (r *codeSpanRenderer) renderCodeSpan(
	w util.BufWriter, source []byte, n ast.Node, entering bool,
) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
		}
	}
	code := sb.String()

	if lineCount(code) > lineNumberThreshold {
		highlighted, err := highlight(code, defaultLanguage, r.style, true)
		if err != nil {
			return ast.WalkStop, err
		}
		if _, err := w.WriteString(highlighted); err != nil {
			return ast.WalkStop, err
		}
		return ast.WalkSkipChildren, nil
	}

	if _, err := w.WriteString(`<code class="inline-code">`); err != nil {
		return ast.WalkStop, err
	}
	if _, err := w.WriteString(template.HTMLEscapeString(code)); err != nil {
		return ast.WalkStop, err
	}
	if _, err := w.WriteString(`</code>`); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}
