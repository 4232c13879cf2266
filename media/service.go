// Package media implements the media transcription service: download a
// source's audio through yt-dlp, transcribe it with Whisper, and delete the
// downloaded artifact.
//
// Every download produces a file named by UniqueFilename, so concurrent calls
// never collide. Audio downloads live in an ephemeral scope directory owned by
// the returned Artifact; the caller releases it or keeps the file.
package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nijaru/mcp-video/config"
	apperrors "github.com/nijaru/mcp-video/errors"
	"github.com/nijaru/mcp-video/extractor"
	"github.com/nijaru/mcp-video/transcription"
	"github.com/sirupsen/logrus"
)

const audioScopePattern = "audio-*"

// Service is safe for concurrent use. Its configuration is a snapshot taken
// at construction.
type Service struct {
	cfg       config.Config
	model     transcription.Model
	extractor *extractor.Extractor
	log       *logrus.Entry
}

type options struct {
	model     transcription.Model
	extractor *extractor.Extractor
	log       *logrus.Entry
}

type Option func(*options)

// WithModel uses an already loaded model instead of loading one from config.
func WithModel(model transcription.Model) Option {
	return func(o *options) { o.model = model }
}

func WithExtractor(e *extractor.Extractor) Option {
	return func(o *options) { o.extractor = e }
}

// WithLogger sets the entry that receives the service log and the
// extraction engine's error messages.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

// New loads the transcription model and prepares the temp directory. Both
// failures are fatal.
func New(cfg config.Config, opts ...Option) (*Service, error) {
	const op = "MediaService.New"

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.WithField("component", "media")
	}

	model := o.model
	if model == nil {
		o.log.WithField("model", cfg.Transcription.Model).Info("Loading transcription model")
		loaded, err := transcription.LoadModel(transcription.Config{
			Model:    cfg.Transcription.Model,
			Binary:   cfg.Transcription.Binary,
			ModelDir: cfg.Transcription.ModelDir,
			WorkDir:  cfg.Storage.TempDir,
		})
		if err != nil {
			return nil, apperrors.Construction(op, err, "failed to load transcription model")
		}
		model = loaded
	}

	if err := os.MkdirAll(cfg.Storage.TempDir, 0o755); err != nil {
		return nil, apperrors.Construction(op, err, "failed to create temp directory")
	}

	ext := o.extractor
	if ext == nil {
		ext = extractor.New(cfg.Extraction.Binary)
	}

	return &Service{
		cfg:       cfg,
		model:     model,
		extractor: ext,
		log:       o.log,
	}, nil
}

func (s *Service) ModelName() string {
	return s.model.Name()
}

func (s *Service) TempDir() string {
	return s.cfg.Storage.TempDir
}

// UniqueFilename returns a fresh "<uuid>.<ext>" name.
func UniqueFilename(ext string) string {
	if ext == "" {
		return uuid.New().String()
	}
	return uuid.New().String() + "." + ext
}

// DownloadVideo downloads the best combined format into the temp directory.
// The result is NotFound when the engine reported success but left no file.
// A partially downloaded file is not removed on failure.
func (s *Service) DownloadVideo(ctx context.Context, url string) (DownloadResult, error) {
	const op = "MediaService.DownloadVideo"
	logger := s.log.WithFields(logrus.Fields{"operation": op, "url": url})

	outputDir := s.cfg.Storage.TempDir
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return DownloadResult{}, apperrors.VideoDownload(op, err)
	}

	opts := s.commonOptions()
	opts.Format = extractor.FormatBest
	opts.OutputTemplate = filepath.Join(outputDir, extractor.IDTemplate)

	info, err := s.extractor.Extract(ctx, url, opts)
	if err != nil {
		logger.WithError(err).Error("Video download failed")
		return DownloadResult{}, apperrors.VideoDownload(op, err)
	}

	tempPath := info.PreparedFilename()
	if !fileExists(tempPath) {
		logger.WithField("expected", tempPath).Warn("No video file produced")
		return DownloadResult{}, nil
	}

	ext := strings.TrimPrefix(filepath.Ext(tempPath), ".")
	newPath, err := filepath.Abs(filepath.Join(outputDir, UniqueFilename(ext)))
	if err != nil {
		return DownloadResult{}, apperrors.VideoDownload(op, err)
	}
	if err := os.Rename(tempPath, newPath); err != nil {
		return DownloadResult{}, apperrors.VideoDownload(op, err)
	}

	logger.WithField("path", newPath).Info("Video downloaded")
	return DownloadResult{Artifact: &Artifact{Path: newPath, log: s.log}}, nil
}

// DownloadAudio downloads the configured audio format into a fresh ephemeral
// scope and converts it to the configured codec. The result is NotFound when
// no converted audio file was produced; the scope is then already removed.
func (s *Service) DownloadAudio(ctx context.Context, url string) (DownloadResult, error) {
	const op = "MediaService.DownloadAudio"
	logger := s.log.WithFields(logrus.Fields{"operation": op, "url": url})

	if err := os.MkdirAll(s.cfg.Storage.TempDir, 0o755); err != nil {
		return DownloadResult{}, apperrors.AudioDownload(op, err)
	}
	scope, err := os.MkdirTemp(s.cfg.Storage.TempDir, audioScopePattern)
	if err != nil {
		return DownloadResult{}, apperrors.AudioDownload(op, err)
	}

	owned := false
	defer func() {
		if !owned {
			s.Cleanup(scope)
		}
	}()

	codec := s.cfg.Extraction.AudioCodec
	opts := s.commonOptions()
	opts.Format = s.cfg.Extraction.Format
	opts.OutputTemplate = filepath.Join(scope, extractor.IDTemplate)
	opts.ExtractAudio = true
	opts.AudioCodec = codec
	opts.AudioQuality = s.cfg.Extraction.AudioQuality

	info, err := s.extractor.Extract(ctx, url, opts)
	if err != nil {
		logger.WithError(err).Error("Audio download failed")
		return DownloadResult{}, apperrors.AudioDownload(op, err)
	}

	tempPath := info.PreparedFilename()
	if tempPath == "" {
		logger.Warn("No audio file produced")
		return DownloadResult{}, nil
	}
	audioPath := strings.TrimSuffix(tempPath, filepath.Ext(tempPath)) + "." + codec
	if !fileExists(audioPath) {
		logger.WithField("expected", audioPath).Warn("No audio file produced")
		return DownloadResult{}, nil
	}

	newPath := filepath.Join(scope, UniqueFilename(codec))
	if err := os.Rename(audioPath, newPath); err != nil {
		return DownloadResult{}, apperrors.AudioDownload(op, err)
	}

	owned = true
	logger.WithField("path", newPath).Info("Audio downloaded")
	return DownloadResult{Artifact: &Artifact{Path: newPath, Dir: scope, log: s.log}}, nil
}

// Transcribe converts the audio file at path to text.
func (s *Service) Transcribe(ctx context.Context, path string) (string, error) {
	const op = "MediaService.Transcribe"

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.FileNotFound(op, path)
		}
		return "", apperrors.Transcription(op, err)
	}

	language := s.cfg.Transcription.Language
	if language == config.LanguageAuto {
		language = ""
	}

	text, err := s.model.Transcribe(ctx, path, language)
	if err != nil {
		s.log.WithError(err).WithField("path", path).Error("Transcription failed")
		return "", apperrors.Transcription(op, err)
	}
	return text, nil
}

// Cleanup deletes path if it exists. Failures are logged and never returned.
func (s *Service) Cleanup(path string) {
	removePath(s.log, path)
}

// ProcessVideo downloads the audio of url, transcribes it and deletes the
// audio artifact on every exit path after the download succeeded.
func (s *Service) ProcessVideo(ctx context.Context, url string) (string, error) {
	const op = "MediaService.ProcessVideo"

	result, err := s.DownloadAudio(ctx, url)
	if err != nil {
		return "", apperrors.Processing(op, err)
	}
	if !result.Found() {
		return "", apperrors.Processing(op, apperrors.AudioDownload(op, nil))
	}
	defer result.Artifact.Release()

	s.log.WithField("path", result.Artifact.Path).Debug("Audio file path")

	text, err := s.Transcribe(ctx, result.Artifact.Path)
	if err != nil {
		return "", apperrors.Processing(op, err)
	}
	return text, nil
}

func (s *Service) commonOptions() extractor.Options {
	return extractor.Options{
		Retries:            s.cfg.Extraction.Retries,
		FragmentRetries:    s.cfg.Extraction.FragmentRetries,
		SocketTimeout:      s.cfg.Extraction.SocketTimeout,
		NoCheckCertificate: true,
		IgnoreErrors:       true,
		Progress:           s.downloadProgress,
		Log:                ErrorSink(s.log),
	}
}

func (s *Service) downloadProgress(p extractor.Progress) {
	if p.Status == "finished" {
		s.log.Info("Download finished, starting post-processing")
	}
}

// ErrorSink forwards only the extraction engine's error messages to log.
func ErrorSink(log *logrus.Entry) extractor.LogSink {
	return extractor.LogSinkFunc(func(level extractor.Level, msg string) {
		if level == extractor.LevelError {
			log.WithField("source", "yt-dlp").Error(msg)
		}
	})
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
