// Package markdown turns assistant message content into renderable HTML. The
// content may be an arbitrarily-truncated prefix of a still-streaming response,
// so segmentation has to be reproducible from any snapshot: every call works on
// the full content string, never on a delta.
package markdown

import "strings"

// SegmentKind classifies a span of message text for rendering.
type SegmentKind string

const (
	// SegmentProse is ordinary markdown text.
	SegmentProse SegmentKind = "prose"
	// SegmentCode is the body of a fenced code block.
	SegmentCode SegmentKind = "code"
)

// Segment is a typed span of message content. Segments are derived fresh on
// every render pass and carry no identity beyond their position.
type Segment struct {
	Kind SegmentKind

	// Language is the raw tag following the opening fence, empty when absent.
	// It is kept verbatim so the original input can be reassembled exactly;
	// display fallbacks are the renderer's concern.
	Language string

	// Text is the exact substring the segment covers, excluding fence
	// delimiters and the opening fence's language tag.
	Text string

	// Complete is false only for a trailing code segment whose closing fence
	// has not arrived yet.
	Complete bool
}

const fenceMarker = "```"

// Segments splits text into alternating prose and fenced-code segments, in
// document order. A fence opens with a line starting with three backticks
// (optionally followed by a language tag) and closes with a line that is
// exactly three backticks; anything else is literal prose.
//
// When stillStreaming is true and the tail after the last complete block
// starts with an opening fence, that tail is treated as a code block in
// progress (Complete=false) once a language tag or non-whitespace content is
// known. A bare fence with nothing after it stays prose until then, so an
// empty code block never flashes up ahead of its content. When stillStreaming
// is false an unmatched opening fence is literal text.
func Segments(text string, stillStreaming bool) []Segment {
	var segs []Segment
	pos := 0
	for {
		open, lang, bodyStart, ok := findOpeningFence(text, pos)
		if !ok {
			break
		}
		bodyEnd, after, ok := findClosingFence(text, bodyStart)
		if !ok {
			break
		}
		if open > pos {
			segs = append(segs, Segment{Kind: SegmentProse, Text: text[pos:open], Complete: true})
		}
		segs = append(segs, Segment{
			Kind:     SegmentCode,
			Language: lang,
			Text:     text[bodyStart:bodyEnd],
			Complete: true,
		})
		pos = after
	}

	tail := text[pos:]
	if tail == "" {
		return segs
	}

	if stillStreaming && strings.HasPrefix(tail, fenceMarker) {
		rest := tail[len(fenceMarker):]
		var lang, body string
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			lang, body = rest[:nl], rest[nl+1:]
		} else {
			lang = rest
		}
		if strings.TrimSpace(lang) != "" || strings.TrimSpace(body) != "" {
			return append(segs, Segment{Kind: SegmentCode, Language: lang, Text: body})
		}
	}

	return append(segs, Segment{Kind: SegmentProse, Text: tail, Complete: true})
}

// findOpeningFence locates the next fence marker at a line start from index
// "from" that has its language tag line terminated by a newline. It returns
// the marker's index, the raw language tag, and the index of the first body
// byte.
func findOpeningFence(text string, from int) (open int, lang string, bodyStart int, ok bool) {
	for i := from; ; {
		rel := strings.Index(text[i:], fenceMarker)
		if rel < 0 {
			return 0, "", 0, false
		}
		idx := i + rel
		if idx != 0 && text[idx-1] != '\n' {
			// Mid-line backticks are inline code territory, not a fence.
			i = idx + 1
			continue
		}
		tagStart := idx + len(fenceMarker)
		nl := strings.IndexByte(text[tagStart:], '\n')
		if nl < 0 {
			// No newline after the opening line anywhere, so no complete
			// block can follow either.
			return 0, "", 0, false
		}
		return idx, text[tagStart : tagStart+nl], tagStart + nl + 1, true
	}
}

// findClosingFence locates the first line from index "from" consisting of
// exactly the fence marker. It returns the index where the code body ends and
// the index just past the marker. A marker with trailing characters on its
// line is not a closing fence.
func findClosingFence(text string, from int) (bodyEnd, after int, ok bool) {
	for i := from; ; {
		rel := strings.Index(text[i:], fenceMarker)
		if rel < 0 {
			return 0, 0, false
		}
		idx := i + rel
		atLineStart := idx == 0 || text[idx-1] == '\n'
		end := idx + len(fenceMarker)
		atLineEnd := end == len(text) || text[end] == '\n'
		if !atLineStart || !atLineEnd {
			i = idx + 1
			continue
		}
		return idx, end, true
	}
}
