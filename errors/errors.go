package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindConstruction  Kind = "construction"
	KindDownload      Kind = "download"
	KindNotFound      Kind = "not_found"
	KindTranscription Kind = "transcription"
	KindProcessing    Kind = "processing"
	KindInvalidInput  Kind = "invalid_input"
	KindInternal      Kind = "internal"
)

type AppError struct {
	Kind    Kind   `json:"-"`
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code int, op string, err error, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// Construction is fatal: the service could not be built.
func Construction(op string, err error, message string) *AppError {
	return newError(KindConstruction, http.StatusInternalServerError, op, err, message)
}

func VideoDownload(op string, err error) *AppError {
	return newError(KindDownload, http.StatusBadGateway, op, err, "video download failed")
}

func AudioDownload(op string, err error) *AppError {
	return newError(KindDownload, http.StatusBadGateway, op, err, "audio download failed")
}

func FileNotFound(op, path string) *AppError {
	return newError(KindNotFound, http.StatusNotFound, op, nil, "file not found: "+path)
}

func Transcription(op string, err error) *AppError {
	return newError(KindTranscription, http.StatusInternalServerError, op, err, "transcription failed")
}

// Processing wraps any stage failure of the composed pipeline. The HTTP code
// of the failed stage is kept.
func Processing(op string, err error) *AppError {
	code := http.StatusInternalServerError
	var stage *AppError
	if stderrors.As(err, &stage) {
		code = stage.Code
	}
	return newError(KindProcessing, code, op, err, "video processing failed")
}

func InvalidInput(op string, err error, message string) *AppError {
	return newError(KindInvalidInput, http.StatusBadRequest, op, err, message)
}

func NotFound(op string, err error, message string) *AppError {
	return newError(KindNotFound, http.StatusNotFound, op, err, message)
}

func Internal(op string, err error, message string) *AppError {
	return newError(KindInternal, http.StatusInternalServerError, op, err, message)
}

// Is reports whether any AppError in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Kind == kind {
			return true
		}
		err = appErr.Err
	}
	return false
}

// HTTPStatus returns the status code carried by the outermost AppError.
func HTTPStatus(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
