package media

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DownloadResult is Found when Artifact is set and NotFound otherwise.
type DownloadResult struct {
	Artifact *Artifact
}

func (r DownloadResult) Found() bool {
	return r.Artifact != nil
}

// Artifact is a downloaded file owned by the caller. Dir, when set, is the
// ephemeral scope the file was created in and is removed with it.
type Artifact struct {
	Path string
	Dir  string
	log  *logrus.Entry
}

// NewArtifact wraps an existing file, optionally inside a scope directory.
func NewArtifact(path, dir string) *Artifact {
	return &Artifact{Path: path, Dir: dir}
}

// Release deletes the file and its scope. Calling it more than once is safe.
func (a *Artifact) Release() {
	log := a.logger()
	removePath(log, a.Path)
	if a.Dir != "" {
		removePath(log, a.Dir)
	}
}

// Keep moves the file into dir, removes the ephemeral scope and returns the
// new path. The artifact then refers to the durable copy.
func (a *Artifact) Keep(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating destination directory")
	}
	dst, err := filepath.Abs(filepath.Join(dir, filepath.Base(a.Path)))
	if err != nil {
		return "", errors.Wrap(err, "resolving destination")
	}

	if err := moveFile(a.Path, dst); err != nil {
		return "", errors.Wrap(err, "moving artifact")
	}

	a.Path = dst
	if a.Dir != "" {
		removePath(a.logger(), a.Dir)
		a.Dir = ""
	}
	return dst, nil
}

func (a *Artifact) logger() *logrus.Entry {
	if a.log != nil {
		return a.log
	}
	return logrus.WithField("component", "media")
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func removePath(log *logrus.Entry, path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).WithField("path", path).Error("Failed to clean up temporary file")
		}
		return
	}

	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", path).Error("Failed to clean up temporary file")
	}
}
