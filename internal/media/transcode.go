package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// TranscodeError reports a failed ffmpeg encode. ExitCode is -1 when the
// process could not be started at all.
type TranscodeError struct {
	ExitCode int
	Err      error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("ffmpeg exited %d: %v", e.ExitCode, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// BurnCaptions re-encodes the video at sourceURL with the ASS script at
// scriptPath composited into the frame and returns the path of the new local
// file. Audio is copied as-is and the output is laid out for progressive
// download. A zero timeout means the encode is awaited without bound.
func BurnCaptions(ctx context.Context, sourceURL, scriptPath string, timeout time.Duration) (string, error) {
	outputPath := filepath.Join(os.TempDir(), fmt.Sprintf("overlay-%s.mp4", uuid.New().String()))

	stream := ffmpeg.Input(sourceURL).
		Output(outputPath, ffmpeg.KwArgs{
			"vf":       "subtitles=" + escapeFilterPath(scriptPath),
			"c:v":      "libx264",
			"preset":   "veryfast",
			"crf":      "23",
			"pix_fmt":  "yuv420p",
			"c:a":      "copy",
			"movflags": "+faststart",
		}).
		OverWriteOutput()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Recompile under our context so a deadline (when configured) kills the
	// process and the exit code stays observable.
	compiled := stream.Compile()
	cmd := exec.CommandContext(ctx, compiled.Path, compiled.Args[1:]...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath) // partial output is useless
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return "", &TranscodeError{ExitCode: exitCode, Err: fmt.Errorf("%w: %s", err, lastLine(stderr.String()))}
	}

	return outputPath, nil
}

// escapeFilterPath prepares a file path for use inside a filter argument,
// where backslashes and colons are syntax.
func escapeFilterPath(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), ":", "\\:")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
