package utils

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/nijaru/mcp-video/errors"
	"github.com/sirupsen/logrus"
)

func HandleError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// RespondWithError writes err with the status code its AppError carries.
func RespondWithError(w http.ResponseWriter, err error) {
	code := apperrors.HTTPStatus(err)

	logrus.WithFields(logrus.Fields{
		"status_code": code,
		"error":       err.Error(),
	}).Error("Request failed")

	HandleError(w, err.Error(), code)
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
	}
}

// FormatText puts every sentence on its own line.
func FormatText(text string) string {
	text = strings.TrimSpace(text)
	var builder strings.Builder
	for _, char := range text {
		builder.WriteRune(char)
		if char == '.' || char == '!' || char == '?' {
			builder.WriteRune('\n')
		}
	}
	return builder.String()
}
