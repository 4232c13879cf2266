package transcription

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func stubLookPath(t *testing.T) {
	t.Helper()
	orig := lookPath
	lookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	t.Cleanup(func() { lookPath = orig })
}

// fakeWhisper writes a JSON transcript where the CLI would and records the
// arguments it was called with.
func fakeWhisper(text string, calls *[][]string, mu *sync.Mutex) Runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		mu.Lock()
		*calls = append(*calls, args)
		mu.Unlock()

		source := args[0]
		var outputDir string
		for i, arg := range args {
			if arg == "--output_dir" {
				outputDir = args[i+1]
			}
		}
		base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		body := fmt.Sprintf(`{"text": "  %s  ", "language": "en"}`, text)
		return nil, os.WriteFile(filepath.Join(outputDir, base+".json"), []byte(body), 0o644)
	}
}

func TestLoadModel(t *testing.T) {
	stubLookPath(t)

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"base", Config{Model: "base"}, false},
		{"english only", Config{Model: "small.en", Binary: "whisper-cli"}, false},
		{"empty", Config{}, true},
		{"unknown", Config{Model: "gigantic"}, true},
		{"missing model dir", Config{Model: "base", ModelDir: "/nonexistent/models"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadModel(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadModel() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadModelMissingBinary(t *testing.T) {
	orig := lookPath
	lookPath = func(file string) (string, error) { return "", fmt.Errorf("not found") }
	t.Cleanup(func() { lookPath = orig })

	if _, err := LoadModel(Config{Model: "base"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestTranscribe(t *testing.T) {
	stubLookPath(t)
	model, err := LoadModel(Config{Model: "base", WorkDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	var calls [][]string
	var mu sync.Mutex
	model.WithRunner(fakeWhisper("Example transcription text", &calls, &mu))

	text, err := model.Transcribe(context.Background(), "/audio/clip.mp3", "auto")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "Example transcription text" {
		t.Errorf("expected trimmed text, got %q", text)
	}

	for _, arg := range calls[0] {
		if arg == "--language" {
			t.Errorf("expected auto language to omit --language, got %v", calls[0])
		}
	}
}

func TestTranscribeForcedLanguage(t *testing.T) {
	stubLookPath(t)
	model, err := LoadModel(Config{Model: "base", WorkDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	var calls [][]string
	var mu sync.Mutex
	model.WithRunner(fakeWhisper("hola", &calls, &mu))

	if _, err := model.Transcribe(context.Background(), "/audio/clip.mp3", "es"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(strings.Join(calls[0], " "), "--language es") {
		t.Errorf("expected --language es, got %v", calls[0])
	}
}

func TestTranscribeRemovesOutputDir(t *testing.T) {
	stubLookPath(t)
	workDir := t.TempDir()
	model, err := LoadModel(Config{Model: "base", WorkDir: workDir})
	if err != nil {
		t.Fatal(err)
	}

	var calls [][]string
	var mu sync.Mutex
	model.WithRunner(fakeWhisper("text", &calls, &mu))

	if _, err := model.Transcribe(context.Background(), "/audio/clip.mp3", ""); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected work dir to be empty, found %d entries", len(entries))
	}
}

func TestTranscribeRunnerError(t *testing.T) {
	stubLookPath(t)
	model, err := LoadModel(Config{Model: "base", WorkDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	model.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("RuntimeError: CUDA out of memory\n"), fmt.Errorf("exit status 1")
	})

	_, err = model.Transcribe(context.Background(), "/audio/clip.mp3", "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Errorf("expected tool output in error, got %q", err.Error())
	}
}

func TestTranscribeConcurrent(t *testing.T) {
	stubLookPath(t)
	model, err := LoadModel(Config{Model: "base", WorkDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	var calls [][]string
	var mu sync.Mutex
	model.WithRunner(fakeWhisper("same", &calls, &mu))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := model.Transcribe(context.Background(), "/audio/clip.mp3", ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}
