// Package transcriber uploads finished audio clips to a remote
// speech-to-text service and returns the recognized text.
package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"mantra/capture"
)

// ErrTranscriptionFailed covers timeouts, non-success responses, and
// success responses without usable text. The wrapped detail carries the
// upstream error text for logging.
var ErrTranscriptionFailed = errors.New("transcription failed")

// acceptedMimeTypes is the fixed allow-list for uploads; anything else is
// rejected before a network call is attempted.
var acceptedMimeTypes = []string{
	"audio/wav", "audio/webm", "audio/ogg",
	"audio/mp3", "audio/mpeg", "audio/x-wav", "audio/x-mpeg-3",
}

// Accepts reports whether the service takes clips of the given mime type.
func Accepts(mimeType string) bool {
	for _, m := range acceptedMimeTypes {
		if m == mimeType {
			return true
		}
	}
	return false
}

const (
	DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"
	DefaultModel    = "whisper-1"
	// DefaultLanguages hints several locales at once instead of picking
	// one, to tolerate code-switched utterances.
	DefaultLanguages = "hi,en,gu"
	DefaultTimeout   = 30 * time.Second
)

type Config struct {
	Endpoint  string
	APIKey    string
	Model     string
	Languages string
	Timeout   time.Duration

	// OnMetrics, when set, receives network timings after each
	// successful request, along with the clip that was uploaded.
	OnMetrics func(m *NetworkMetrics, clip *capture.Clip)
}

// Client performs one-shot transcriptions. No retries: a failed call ends
// the caller's session.
type Client struct {
	cfg    Config
	client *TracedClient
}

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Languages == "" {
		cfg.Languages = DefaultLanguages
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg, client: NewTracedClient(cfg.Endpoint)}
}

// Warm opens the TLS connection ahead of the first upload.
func (c *Client) Warm() {
	go c.client.Warm()
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the clip and returns the recognized text. The clip's
// mime type is checked against the allow-list before any network traffic.
func (c *Client) Transcribe(ctx context.Context, clip *capture.Clip) (string, error) {
	if !Accepts(clip.MimeType) {
		return "", fmt.Errorf("%w: unsupported audio type %q", ErrTranscriptionFailed, clip.MimeType)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "voice_command."+clip.Ext())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	writer.WriteField("model", c.cfg.Model)
	writer.WriteField("language", c.cfg.Languages)
	writer.Close()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: api error %d: %s", ErrTranscriptionFailed, resp.StatusCode, string(resp.Body))
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return "", fmt.Errorf("%w: response parse error: %v", ErrTranscriptionFailed, err)
	}
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return "", fmt.Errorf("%w: response missing text", ErrTranscriptionFailed)
	}

	if c.cfg.OnMetrics != nil {
		c.cfg.OnMetrics(resp.Metrics, clip)
	}
	return text, nil
}
