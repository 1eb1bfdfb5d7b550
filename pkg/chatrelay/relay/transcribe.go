// Package relay – transcribe.go turns voice notes into text: download the
// raw audio from the channel, convert it to WAV with ffmpeg, and submit it
// to a Whisper-compatible transcription endpoint.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

// defaultTranscriptionModel is the Whisper model used when config leaves it
// unset.
const defaultTranscriptionModel = "whisper-1"

// Transcriber converts audio payloads to text via the /audio/transcriptions
// endpoint of an OpenAI-compatible API.
type Transcriber struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger

	// convert is the audio conversion seam; defaults to ffmpeg.
	convert func(ctx context.Context, data []byte, mimeType string) ([]byte, error)
}

// NewTranscriber creates a transcriber from config.
func NewTranscriber(cfg *Config, logger *slog.Logger) *Transcriber {
	baseURL := cfg.API.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.TranscriptionModel
	if model == "" {
		model = defaultTranscriptionModel
	}
	return &Transcriber{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.API.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With("component", "transcriber"),
		convert:    convertToWAV,
	}
}

// Transcribe converts the raw audio to WAV and submits it for transcription.
// Returns the transcript text.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if t.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	wav, err := t.convert(ctx, audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("converting audio: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "voice.wav")
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("writing audio data: %w", err)
	}
	if err := w.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("writing model field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	endpoint := t.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	t.logger.Debug("sending transcription request",
		"model", t.model,
		"size_bytes", len(wav),
	)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API returned %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parsing transcription response: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}

// convertToWAV converts arbitrary audio bytes to 16 kHz mono WAV using
// ffmpeg, the canonical input format for Whisper.
func convertToWAV(ctx context.Context, data []byte, mimeType string) ([]byte, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	in, err := os.CreateTemp("", "chatrelay-voice-*"+extensionFor(mimeType))
	if err != nil {
		return nil, fmt.Errorf("creating temp input: %w", err)
	}
	defer os.Remove(in.Name())

	if _, err := in.Write(data); err != nil {
		in.Close()
		return nil, fmt.Errorf("writing temp input: %w", err)
	}
	in.Close()

	out, err := os.CreateTemp("", "chatrelay-voice-*.wav")
	if err != nil {
		return nil, fmt.Errorf("creating temp output: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", in.Name(),
		"-ar", "16000",
		"-ac", "1",
		outPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, truncate(string(output), 300))
	}

	wav, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("reading converted audio: %w", err)
	}
	return wav, nil
}

// extensionFor maps common voice-note MIME types to file extensions so
// ffmpeg can sniff the container.
func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "ogg"), strings.Contains(mimeType, "opus"):
		return ".ogg"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return ".mp3"
	case strings.Contains(mimeType, "mp4"), strings.Contains(mimeType, "m4a"):
		return ".m4a"
	case strings.Contains(mimeType, "webm"):
		return ".webm"
	case strings.Contains(mimeType, "wav"):
		return ".wav"
	default:
		return ".bin"
	}
}
