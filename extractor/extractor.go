// Package extractor drives the yt-dlp extraction engine.
//
// yt-dlp resolves platform URLs, downloads the selected stream and runs its
// post-processors (audio extraction through ffmpeg). This package builds the
// command line from an Options bag, streams the tool's output into a LogSink
// and a ProgressHook, and parses the info document yt-dlp prints for the
// downloaded entry.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultBinary = "yt-dlp"

	// FormatBest selects the best single file with both audio and video.
	FormatBest = "best"

	// IDTemplate names the working file after the platform content id.
	IDTemplate = "%(id)s.%(ext)s"

	progressPrefix   = "[progress] "
	progressTemplate = "download:" + progressPrefix + "%(progress.status)s %(progress._percent_str)s"
)

// Options is the per-call options bag handed to yt-dlp.
type Options struct {
	Format             string
	OutputTemplate     string
	ExtractAudio       bool
	AudioCodec         string
	AudioQuality       string
	Retries            int
	FragmentRetries    int
	SocketTimeout      time.Duration
	NoCheckCertificate bool
	IgnoreErrors       bool
	Progress           ProgressHook
	Log                LogSink
}

// Runner executes name with args, streaming the process output.
type Runner func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error

type Extractor struct {
	binary string
	run    Runner
}

func New(binary string) *Extractor {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Extractor{binary: binary, run: execRunner}
}

// WithRunner replaces the process runner (for testing).
func (e *Extractor) WithRunner(run Runner) {
	e.run = run
}

func (e *Extractor) Binary() string {
	return e.binary
}

// Extract downloads url according to opts and returns the metadata of the
// downloaded entry. A non-zero exit is tolerated when yt-dlp still produced an
// info document, matching its ignore-errors mode.
func (e *Extractor) Extract(ctx context.Context, url string, opts Options) (*Info, error) {
	sink := opts.Log
	if sink == nil {
		sink = discardSink{}
	}

	var infoLines [][]byte
	var lastError string

	stdout := newLineWriter(func(line string) {
		switch {
		case strings.HasPrefix(line, "{"):
			infoLines = append(infoLines, []byte(line))
		case strings.HasPrefix(line, progressPrefix):
			emitProgress(opts.Progress, line)
		default:
			sink.Log(LevelInfo, line)
		}
	})
	stderr := newLineWriter(func(line string) {
		if strings.HasPrefix(line, progressPrefix) {
			emitProgress(opts.Progress, line)
			return
		}
		level, msg := classify(line)
		if level == LevelError {
			lastError = msg
		}
		sink.Log(level, msg)
	})

	runErr := e.run(ctx, e.binary, BuildArgs(url, opts), stdout, stderr)
	stdout.Flush()
	stderr.Flush()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Wrap(ctxErr, "extraction cancelled")
	}

	var info *Info
	if len(infoLines) > 0 {
		info = &Info{}
		if err := json.Unmarshal(infoLines[len(infoLines)-1], info); err != nil {
			return nil, errors.Wrap(err, "parsing yt-dlp info")
		}
		info.template = opts.OutputTemplate
	}

	if info == nil {
		if lastError != "" {
			return nil, errors.New(lastError)
		}
		if runErr != nil {
			return nil, errors.Wrap(runErr, e.binary)
		}
		return nil, errors.New("no media information returned")
	}

	return info, nil
}

// BuildArgs turns an options bag into a yt-dlp command line.
func BuildArgs(url string, opts Options) []string {
	args := []string{
		"--no-simulate",
		"--dump-json",
		"--no-playlist",
		"--newline",
		"--progress",
		"--progress-template", progressTemplate,
	}

	if opts.Format != "" {
		args = append(args, "--format", opts.Format)
	}
	if opts.OutputTemplate != "" {
		args = append(args, "--output", opts.OutputTemplate)
	}
	if opts.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(opts.Retries))
	}
	if opts.FragmentRetries > 0 {
		args = append(args, "--fragment-retries", strconv.Itoa(opts.FragmentRetries))
	}
	if opts.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.FormatFloat(opts.SocketTimeout.Seconds(), 'f', -1, 64))
	}
	if opts.NoCheckCertificate {
		args = append(args, "--no-check-certificates")
	}
	if opts.IgnoreErrors {
		args = append(args, "--ignore-errors")
	}
	if opts.ExtractAudio {
		args = append(args, "--extract-audio")
		if opts.AudioCodec != "" {
			args = append(args, "--audio-format", opts.AudioCodec)
		}
		if opts.AudioQuality != "" {
			args = append(args, "--audio-quality", opts.AudioQuality)
		}
	}

	return append(args, "--", url)
}

func emitProgress(hook ProgressHook, line string) {
	if hook == nil {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(line, progressPrefix))
	if len(fields) == 0 {
		return
	}
	p := Progress{Status: fields[0]}
	if len(fields) > 1 {
		p.Percent = fields[1]
	}
	hook(p)
}

func execRunner(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// lineWriter calls fn for every complete, non-empty line written to it.
type lineWriter struct {
	buf bytes.Buffer
	fn  func(string)
}

func newLineWriter(fn func(string)) *lineWriter {
	return &lineWriter{fn: fn}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		w.emit(line)
	}
	return len(p), nil
}

// Flush emits a trailing line that had no newline.
func (w *lineWriter) Flush() {
	if w.buf.Len() == 0 {
		return
	}
	w.emit(w.buf.String())
	w.buf.Reset()
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	w.fn(line)
}
