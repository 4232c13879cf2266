package transcription

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBinary = "whisper"
	LanguageAuto  = "auto"
)

// KnownModels are the model names the Whisper CLI accepts.
var KnownModels = map[string]bool{
	"tiny": true, "tiny.en": true,
	"base": true, "base.en": true,
	"small": true, "small.en": true,
	"medium": true, "medium.en": true,
	"large": true, "large-v1": true, "large-v2": true, "large-v3": true,
	"large-v3-turbo": true, "turbo": true,
}

// Model converts an audio file to text. Implementations must be safe for
// concurrent use.
type Model interface {
	Transcribe(ctx context.Context, path, language string) (string, error)
	Name() string
}

type Config struct {
	Model    string
	Binary   string
	ModelDir string
	// WorkDir holds the per-call output directories. Defaults to os.TempDir().
	WorkDir string
}

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

var lookPath = exec.LookPath

// WhisperModel runs the Whisper CLI. Every call writes to its own output
// directory, so concurrent calls share nothing.
type WhisperModel struct {
	cfg    Config
	binary string
	run    Runner
}

// LoadModel validates the model name and resolves the Whisper binary.
func LoadModel(cfg Config) (*WhisperModel, error) {
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}
	if !KnownModels[cfg.Model] {
		return nil, errors.Errorf("unknown whisper model %q", cfg.Model)
	}
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.ModelDir != "" {
		if info, err := os.Stat(cfg.ModelDir); err != nil || !info.IsDir() {
			return nil, errors.Errorf("model directory %s is not accessible", cfg.ModelDir)
		}
	}

	binary, err := lookPath(cfg.Binary)
	if err != nil {
		return nil, errors.Wrapf(err, "whisper binary %s", cfg.Binary)
	}

	logrus.WithFields(logrus.Fields{
		"model":  cfg.Model,
		"binary": binary,
	}).Info("Whisper model loaded")

	return &WhisperModel{cfg: cfg, binary: binary, run: combinedOutput}, nil
}

// WithRunner replaces the command runner (for testing).
func (m *WhisperModel) WithRunner(run Runner) {
	m.run = run
}

func (m *WhisperModel) Name() string {
	return m.cfg.Model
}

// Transcribe returns the transcript of the audio file at path. An empty
// language or "auto" lets the model detect the spoken language.
func (m *WhisperModel) Transcribe(ctx context.Context, path, language string) (string, error) {
	outputDir, err := os.MkdirTemp(m.cfg.WorkDir, "whisper-*")
	if err != nil {
		return "", errors.Wrap(err, "creating whisper output directory")
	}
	defer func() {
		if err := os.RemoveAll(outputDir); err != nil {
			logrus.WithError(err).WithField("dir", outputDir).Error("Failed to remove whisper output")
		}
	}()

	output, err := m.run(ctx, m.binary, m.buildArgs(path, outputDir, language)...)
	if err != nil {
		return "", errors.Wrapf(err, "whisper: %s", strings.TrimSpace(string(output)))
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return readTranscript(filepath.Join(outputDir, base+".json"))
}

func (m *WhisperModel) buildArgs(path, outputDir, language string) []string {
	args := []string{
		path,
		"--model", m.cfg.Model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--verbose", "False",
	}
	if m.cfg.ModelDir != "" {
		args = append(args, "--model_dir", m.cfg.ModelDir)
	}
	if language != "" && language != LanguageAuto {
		args = append(args, "--language", language)
	}
	return args
}

type whisperPayload struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func readTranscript(jsonPath string) (string, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return "", errors.Wrap(err, "reading whisper output")
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", errors.Wrap(err, "parsing whisper output")
	}

	logrus.WithFields(logrus.Fields{
		"language": payload.Language,
		"length":   len(payload.Text),
	}).Debug("Whisper transcript read")

	return strings.TrimSpace(payload.Text), nil
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
