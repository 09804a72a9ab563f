package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrNoText is returned when no image variant produced any text.
	ErrNoText = errors.New("no text recognized")
	// ErrProviderDisabled is returned when the remote provider is not configured.
	ErrProviderDisabled = errors.New("remote ocr provider not configured")
	// ErrEmptyResponse is returned when the remote provider answered without any fields.
	ErrEmptyResponse = errors.New("remote ocr response has no text")
)

// ProviderError reports a non-success status from the remote provider.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("clova ocr request failed (%d)", e.Status)
	}
	return fmt.Sprintf("clova ocr request failed (%d): %s", e.Status, e.Body)
}
