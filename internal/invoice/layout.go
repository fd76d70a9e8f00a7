package invoice

// TextMeasurer abstracts the rendering engine's text metrics. The renderer
// passes an fpdf-backed implementation; tests pass a fixed-width fake.
type TextMeasurer interface {
	// StringWidth returns the rendered width of s at the given font size.
	StringWidth(s string, fontSize float64) float64

	// SplitLines wraps s into lines no wider than width at the given font
	// size. An empty result for non-empty input signals the engine could not
	// wrap (degenerate width); callers fall back to character-count chunking.
	SplitLines(s string, fontSize, width float64) []string
}

// IDLayout describes how a (possibly very long) invoice id will be drawn
// inside the right-hand metadata column.
type IDLayout struct {
	FontSize float64  // chosen size after shrinking, idFontFloor..idFontStart
	Lines    []string // wrapped lines, each fitting the column width
	Height   float64  // total block height; the Date label goes strictly below
}

// LineHeight is the vertical advance for a line of the invoice id block.
func (l IDLayout) LineHeight() float64 {
	return l.FontSize + 2
}

const (
	idFontStart = 10.0
	idFontFloor = 6.0
)

// FitInvoiceID chooses a font size and line split for the invoice id so the
// block fits the metadata column. It first shrinks the font (down to a 6pt
// floor) while the unwrapped id is wider than the column, then wraps whatever
// still overflows. The engine's own measurement is authoritative; the
// fixed-character-count split is only the fallback when the engine cannot
// produce a wrap.
func FitInvoiceID(m TextMeasurer, id string, colWidth float64) IDLayout {
	size := idFontStart
	for size > idFontFloor && m.StringWidth(id, size) > colWidth {
		size--
	}

	layout := IDLayout{FontSize: size}
	if id == "" {
		return layout
	}

	lines := m.SplitLines(id, size, colWidth)
	if len(lines) == 0 {
		lines = chunkString(id, fallbackCharsPerLine(size, colWidth))
	}

	layout.Lines = lines
	layout.Height = float64(len(lines)) * layout.LineHeight()
	return layout
}

// fallbackCharsPerLine estimates how many characters fit in width when no
// real metrics are available. 0.6 × fontSize is a conservative per-glyph
// width for Helvetica; the result is clamped so pathological inputs still
// make forward progress.
func fallbackCharsPerLine(fontSize, width float64) int {
	charWidth := fontSize * 0.6
	if charWidth < 4 {
		charWidth = 4
	}
	n := int(width / charWidth)
	if n < 10 {
		n = 10
	}
	return n
}

// chunkString splits s into pieces of at most n characters.
func chunkString(s string, n int) []string {
	if n <= 0 {
		return []string{s}
	}
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}
