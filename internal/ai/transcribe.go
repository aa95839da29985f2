package ai

import (
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// Transcriber converts audio to text with the Whisper API.
type Transcriber struct {
	client *openai.Client
}

// NewTranscriber creates a transcriber.
func NewTranscriber(client *openai.Client) *Transcriber {
	return &Transcriber{client: client}
}

// Transcribe sends the audio stream to Whisper and returns the text. The
// filename is only used by the API to sniff the container format.
func (t *Transcriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}

	return resp.Text, nil
}
