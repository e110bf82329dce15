package cli

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/keyapp-labs/flowkit/envutil"
)

const (
	boxTopLeft     = "╒"
	boxBottomLeft  = "└"
	boxTopRight    = "╕"
	boxBottomRight = "┘"
	boxSide        = "│"
	boxTop         = "═"
	boxBottom      = "─"
	barFull        = "█"
	barEmpty       = "░"
	ellipsis       = "…"

	bannerPadding = 2
	minWidth      = 8
)

// DefaultTerminalWidth is used when COLUMNS is unset.
const DefaultTerminalWidth = 80

// Width reads the terminal width from COLUMNS.
func Width() int {
	return envutil.Int("COLUMNS", envutil.Default(DefaultTerminalWidth)).ValueOrElse(DefaultTerminalWidth)
}

// Banner boxes the lines of s, centered, in a frame width runes wide.
// FLOWKIT_NO_BANNER=true returns s unframed.
func Banner(s string, width int) string {
	if envutil.Bool("FLOWKIT_NO_BANNER", envutil.Default(false)).ValueOrElse(false) {
		return s + "\n"
	}

	width = max(width, minWidth)
	inner := width - bannerPadding

	parts := []string{boxTopLeft + strings.Repeat(boxTop, inner) + boxTopRight}

	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		parts = append(parts, boxSide+center(l, inner)+boxSide)
	}

	parts = append(parts, boxBottomLeft+strings.Repeat(boxBottom, inner)+boxBottomRight)

	return strings.Join(parts, "\n") + "\n"
}

// ProgressBar renders fraction (clamped to [0, 1]) as a bar width runes wide
// followed by a percentage.
func ProgressBar(fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction * float64(width))

	return fmt.Sprintf("%s%s %3.0f%%",
		strings.Repeat(barFull, filled), strings.Repeat(barEmpty, width-filled), fraction*100) //nolint:mnd
}

func center(text string, width int) string {
	length := utf8.RuneCountInString(text)

	if length > width {
		runes := []rune(text)

		return string(runes[:width-1]) + ellipsis
	}

	left := (width - length) / 2 //nolint:mnd

	return strings.Repeat(" ", left) + text + strings.Repeat(" ", width-length-left)
}
