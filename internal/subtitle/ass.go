// Package subtitle renders an analysis into an ASS caption script suitable for
// burning into the video with ffmpeg's subtitles filter.
package subtitle

import (
	"fmt"
	"math"
	"strings"

	"github.com/formcoach/api/internal/model"
	"github.com/formcoach/api/internal/timecode"
)

// How long the final caption stays on screen, in seconds.
const lastItemWindow = 4

// Build produces a complete ASS script for the given analysis items. Geometry
// scales with the frame so captions stay legible and inside the picture at any
// resolution. Items must already be in chronological order; each caption is
// shown until the next one starts, and the last for a fixed window.
func Build(items []model.AnalysisItem, width, height int) string {
	fontSize := atLeast(20, round(float64(height)*0.035))
	marginL := atLeast(40, round(float64(width)*0.06))
	marginR := marginL
	marginV := atLeast(40, round(float64(height)*0.08))

	var b strings.Builder

	fmt.Fprintln(&b, "[Script Info]")
	fmt.Fprintln(&b, "ScriptType: v4.00+")
	fmt.Fprintln(&b, "WrapStyle: 0")
	fmt.Fprintln(&b, "ScaledBorderAndShadow: yes")
	fmt.Fprintf(&b, "PlayResX: %d\n", width)
	fmt.Fprintf(&b, "PlayResY: %d\n", height)
	fmt.Fprintln(&b, "")
	fmt.Fprintln(&b, "[V4+ Styles]")
	fmt.Fprintln(&b, "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding")
	fmt.Fprintf(&b, "Style: Suggestion,DejaVu Sans,%d,&H00FFFFFF,&H000000FF,&HAA000000,&H00000000,0,0,0,0,100,100,0,0,1,3,1,2,%d,%d,%d,0\n", fontSize, marginL, marginR, marginV)
	fmt.Fprintln(&b, "")
	fmt.Fprintln(&b, "[Events]")
	fmt.Fprintln(&b, "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text")

	for i, item := range items {
		endTs := timecode.AddSeconds(item.Timestamp, lastItemWindow)
		if i < len(items)-1 {
			endTs = items[i+1].Timestamp
		}
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Suggestion,,0,0,0,,%s\n",
			timecode.ToHMS(item.Timestamp),
			timecode.ToHMS(endTs),
			escape(item.Suggestion))
	}

	return b.String()
}

// escape neutralizes characters that would corrupt the script structure:
// backslashes, override braces, and line breaks (which become soft wraps).
func escape(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		"{", "\\{",
		"}", "\\}",
		"\r\n", "\\N",
		"\n", "\\N",
	)
	return r.Replace(s)
}

func round(f float64) int {
	return int(math.Round(f))
}

func atLeast(min, v int) int {
	if v < min {
		return min
	}
	return v
}
