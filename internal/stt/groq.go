// Package stt wraps the cloud transcription endpoint behind a narrow typed
// contract.
package stt

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var (
	// ErrNoCredential means the API key is absent. Configuration error,
	// surfaced to the caller and never retried.
	ErrNoCredential = errors.New("stt: api key not configured")

	// ErrNotFound means the capture artifact is missing on disk.
	ErrNotFound = errors.New("stt: audio file not found")
)

// ServiceError wraps any upstream transcription failure.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string { return "stt: service error: " + e.Err.Error() }
func (e *ServiceError) Unwrap() error { return e.Err }

type Transcriber struct {
	client   openai.Client
	apiKey   string
	model    string
	language string
}

// NewTranscriber builds the adapter. A missing key is reported on first use,
// not here.
func NewTranscriber(apiKey, model, language string, opts ...option.RequestOption) *Transcriber {
	opts = append(opts, option.WithAPIKey(apiKey))
	return &Transcriber{
		client:   openai.NewClient(opts...),
		apiKey:   apiKey,
		model:    model,
		language: language,
	}
}

// Transcribe sends the audio artifact at path to the transcription service
// and returns the raw transcript. An empty transcript is a valid result; the
// caller decides whether it is usable.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	if t.apiKey == "" {
		return "", ErrNoCredential
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", &ServiceError{Err: err}
	}
	defer f.Close()

	res, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model:    openai.AudioModel(t.model),
		File:     f,
		Language: openai.String(t.language),
	})
	if err != nil {
		return "", &ServiceError{Err: err}
	}

	log.Debug("transcription done", "chars", len(res.Text))
	return res.Text, nil
}
