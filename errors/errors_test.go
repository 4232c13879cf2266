package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestErrorWithCause(t *testing.T) {
	err := AudioDownload("test", fmt.Errorf("ERROR: unsupported URL"))

	expected := "audio download failed: ERROR: unsupported URL"
	if err.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, err.Error())
	}
}

func TestErrorWithoutCause(t *testing.T) {
	err := AudioDownload("test", nil)
	if err.Error() != "audio download failed" {
		t.Errorf("expected 'audio download failed', got '%s'", err.Error())
	}
}

func TestFileNotFoundMentionsPath(t *testing.T) {
	err := FileNotFound("test", "/nonexistent/path.mp3")
	if !strings.Contains(err.Error(), "file not found") {
		t.Errorf("expected 'file not found' in %q", err.Error())
	}
	if !strings.Contains(err.Error(), "/nonexistent/path.mp3") {
		t.Errorf("expected path in %q", err.Error())
	}
}

func TestProcessingChain(t *testing.T) {
	cause := fmt.Errorf("model crashed")
	err := Processing("pipeline", Transcription("transcribe", cause))

	expected := "video processing failed: transcription failed: model crashed"
	if err.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected original cause to be preserved in the chain")
	}
	if !Is(err, KindTranscription) {
		t.Error("expected transcription kind in the chain")
	}
	if !Is(err, KindProcessing) {
		t.Error("expected processing kind in the chain")
	}
	if Is(err, KindDownload) {
		t.Error("did not expect download kind in the chain")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{"not found error", FileNotFound("op", "/x"), KindNotFound, true},
		{"other error", InvalidInput("op", nil, "bad"), KindNotFound, false},
		{"non-custom error", fmt.Errorf("standard error"), KindNotFound, false},
		{"wrapped by fmt", fmt.Errorf("outer: %w", VideoDownload("op", nil)), KindDownload, true},
		{"nil", nil, KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.kind); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid input", InvalidInput("op", nil, "bad"), http.StatusBadRequest},
		{"file not found", FileNotFound("op", "/x"), http.StatusNotFound},
		{"download", VideoDownload("op", nil), http.StatusBadGateway},
		{"processing keeps stage code", Processing("op", AudioDownload("op", nil)), http.StatusBadGateway},
		{"processing of plain error", Processing("op", fmt.Errorf("boom")), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.expected {
				t.Errorf("expected code %d, got %d", tt.expected, got)
			}
		})
	}
}
