// Package media wraps the ffmpeg toolchain for probing and caption burn-in.
package media

import (
	"bytes"
	"io"
	"log"
	"regexp"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Dimensions holds a video's pixel size. The zero value means unknown.
type Dimensions struct {
	Width  int
	Height int
}

// OK reports whether both dimensions are known.
func (d Dimensions) OK() bool {
	return d.Width > 0 && d.Height > 0
}

// Matches the resolution token in ffmpeg's stream info, e.g.
// "Stream #0:0: Video: h264 (High), yuv420p(progressive), 576x1024, ...".
var videoDimensionsRe = regexp.MustCompile(`Video: [^,]+, [^,]*,\s*(\d+)x(\d+)`)

// ProbeDimensions decodes the input just far enough for ffmpeg to report
// stream metadata (null muxer, output discarded) and extracts the first video
// resolution it mentions. It never fails: a broken URL, a non-zero exit, or
// missing metadata all yield the zero value and the caller picks a fallback.
func ProbeDimensions(url string) Dimensions {
	var stderr bytes.Buffer

	err := ffmpeg.Input(url).
		Output("-", ffmpeg.KwArgs{"f": "null"}).
		WithOutput(io.Discard).
		WithErrorOutput(&stderr).
		Run()
	if err != nil {
		log.Printf("[ffmpeg] probe of %s exited with error: %v", url, err)
	}

	return parseDimensions(stderr.String())
}

func parseDimensions(diag string) Dimensions {
	m := videoDimensionsRe.FindStringSubmatch(diag)
	if m == nil {
		return Dimensions{}
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return Dimensions{Width: w, Height: h}
}
