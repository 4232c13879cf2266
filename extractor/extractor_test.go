package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"
)

func fakeRunner(stdout, stderr string, err error) Runner {
	return func(ctx context.Context, name string, args []string, out, errOut io.Writer) error {
		io.WriteString(out, stdout)
		io.WriteString(errOut, stderr)
		return err
	}
}

func TestBuildArgsAudio(t *testing.T) {
	args := BuildArgs("https://example.com/v", Options{
		Format:             "bestaudio",
		OutputTemplate:     "/tmp/x/%(id)s.%(ext)s",
		ExtractAudio:       true,
		AudioCodec:         "mp3",
		AudioQuality:       "192",
		Retries:            10,
		FragmentRetries:    10,
		SocketTimeout:      30 * time.Second,
		NoCheckCertificate: true,
		IgnoreErrors:       true,
	})

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--format bestaudio",
		"--output /tmp/x/%(id)s.%(ext)s",
		"--extract-audio --audio-format mp3 --audio-quality 192",
		"--retries 10",
		"--fragment-retries 10",
		"--socket-timeout 30",
		"--no-check-certificates",
		"--ignore-errors",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in %q", want, joined)
		}
	}

	if tail := args[len(args)-2:]; !reflect.DeepEqual(tail, []string{"--", "https://example.com/v"}) {
		t.Errorf("expected url after --, got %v", tail)
	}
}

func TestBuildArgsVideoOmitsAudioFlags(t *testing.T) {
	args := BuildArgs("https://example.com/v", Options{Format: FormatBest})
	for _, arg := range args {
		if arg == "--extract-audio" || arg == "--audio-format" {
			t.Fatalf("unexpected audio flag %s in %v", arg, args)
		}
	}
}

func TestExtractParsesInfo(t *testing.T) {
	e := New("")
	e.WithRunner(fakeRunner(
		"[progress] downloading 50.0%\n[progress] finished 100.0%\n"+
			`{"id":"abc","ext":"webm","title":"Talk","filename":"/tmp/x/abc.webm"}`+"\n",
		"WARNING: something odd\n", nil))

	var progress []Progress
	info, err := e.Extract(context.Background(), "https://example.com/v", Options{
		Progress: func(p Progress) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if info.ID != "abc" || info.Ext != "webm" {
		t.Errorf("unexpected info %+v", info)
	}
	if info.PreparedFilename() != "/tmp/x/abc.webm" {
		t.Errorf("expected /tmp/x/abc.webm, got %s", info.PreparedFilename())
	}
	if len(progress) != 2 || progress[1].Status != "finished" || progress[0].Percent != "50.0%" {
		t.Errorf("unexpected progress events %+v", progress)
	}
}

func TestExtractPreparedFilenameFromTemplate(t *testing.T) {
	e := New("")
	e.WithRunner(fakeRunner(`{"id":"abc","ext":"m4a"}`, "", nil))

	info, err := e.Extract(context.Background(), "u", Options{OutputTemplate: "/tmp/y/%(id)s.%(ext)s"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if info.PreparedFilename() != "/tmp/y/abc.m4a" {
		t.Errorf("expected /tmp/y/abc.m4a, got %s", info.PreparedFilename())
	}
}

func TestExtractToleratesExitWithInfo(t *testing.T) {
	e := New("")
	e.WithRunner(fakeRunner(`{"id":"abc","ext":"mp4"}`+"\n", "ERROR: postprocessing: minor\n", fmt.Errorf("exit status 1")))

	if _, err := e.Extract(context.Background(), "u", Options{}); err != nil {
		t.Fatalf("expected non-fatal error to be tolerated, got %v", err)
	}
}

func TestExtractReturnsLastError(t *testing.T) {
	e := New("")
	e.WithRunner(fakeRunner("", "WARNING: retrying\nERROR: Unsupported URL: u\n", fmt.Errorf("exit status 1")))

	_, err := e.Extract(context.Background(), "u", Options{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "ERROR: Unsupported URL: u" {
		t.Errorf("unexpected error %q", err.Error())
	}
}

func TestExtractRunnerFailureWithoutOutput(t *testing.T) {
	e := New("yt-dlp-missing")
	cause := errors.New("executable file not found")
	e.WithRunner(fakeRunner("", "", cause))

	_, err := e.Extract(context.Background(), "u", Options{})
	if !errors.Is(err, cause) {
		t.Fatalf("expected runner error in chain, got %v", err)
	}
}

func TestLogSinkReceivesClassifiedLines(t *testing.T) {
	e := New("")
	e.WithRunner(fakeRunner(`{"id":"a","ext":"mp4"}`, "[debug] args\n[youtube] abc: Downloading\nWARNING: w\nERROR: e", nil))

	got := map[Level][]string{}
	sink := LogSinkFunc(func(level Level, msg string) {
		got[level] = append(got[level], msg)
	})

	if _, err := e.Extract(context.Background(), "u", Options{Log: sink}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(got[LevelDebug]) != 1 || len(got[LevelInfo]) != 1 || len(got[LevelWarning]) != 1 {
		t.Errorf("unexpected classification %v", got)
	}
	if len(got[LevelError]) != 1 || got[LevelError][0] != "ERROR: e" {
		t.Errorf("expected trailing error line to be flushed, got %v", got[LevelError])
	}
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New("")
	e.WithRunner(func(ctx context.Context, name string, args []string, out, errOut io.Writer) error {
		return ctx.Err()
	})

	_, err := e.Extract(ctx, "u", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
