package validation

import (
	"net/url"
	"strings"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateURL performs the syntactic checks the HTTP and CLI surfaces apply
// before handing a URL to the extraction engine. Whether the platform is
// supported is left to the engine.
func ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return &ValidationError{Message: "error: URL is required"}
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return &ValidationError{Message: "error: invalid URL format"}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Message: "error: URL must start with http or https"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Message: "error: URL must have a host"}
	}

	return nil
}
