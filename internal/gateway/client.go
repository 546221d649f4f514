// Package gateway provides the HTTP client for the Voice Cloning Studio
// service. It exposes one method per remote operation and normalizes every
// failure into the shared error taxonomy before handing it back to a store.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/voicestudio/studio-client/internal/core"
)

// API endpoints and paths.
const (
	apiHealth      = "/health"
	apiVoices      = "/voices"
	apiVoicesClone = "/voices/clone"
	apiGenerate    = "/tts/generate"
	apiLanguages   = "/languages"

	voiceStatusPathFormat = "/voices/%s/status"
	voicePathFormat       = "/voices/%s"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

// DefaultTimeout bounds every request made by the client. It is sized to
// accommodate large multi-file clone uploads.
const DefaultTimeout = 60 * time.Second

// Multipart form field names for clone submissions.
const (
	formFieldName        = "name"
	formFieldDescription = "description"
	formFieldFiles       = "files"
)

// HealthResponse is the service health report.
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Services  map[string]bool `json:"services"`
}

// VoiceStatusResponse is the detailed lifecycle status of one voice.
type VoiceStatusResponse struct {
	VoiceID  string           `json:"voice_id"`
	Status   core.VoiceStatus `json:"status"`
	Progress float64          `json:"progress,omitempty"`
	Message  string           `json:"message,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// CloneFile is one audio sample part of a clone submission.
type CloneFile struct {
	Name string
	Data io.Reader
}

// CloneRequest is a named bundle of audio samples submitted to create a
// new voice. It is encoded as a multipart form on the wire.
type CloneRequest struct {
	Name        string
	Description string
	Files       []CloneFile
}

// CloneResponse acknowledges a clone submission. The voice starts in the
// processing state; the authoritative record appears in a later voice
// listing.
type CloneResponse struct {
	VoiceID string           `json:"voice_id"`
	Status  core.VoiceStatus `json:"status"`
	Message string           `json:"message"`
}

// DeleteResponse acknowledges a voice deletion.
type DeleteResponse struct {
	Message string `json:"message"`
}

// GenerateRequest is the JSON payload for a speech generation request.
type GenerateRequest struct {
	Text        string  `json:"text"`
	VoiceID     string  `json:"voice_id"`
	Language    string  `json:"language"`
	Speed       float64 `json:"speed"`
	Temperature float64 `json:"temperature"`
}

type languagesResponse struct {
	Languages []core.LanguageEntry `json:"languages"`
}

// Client is a stateless HTTP client for the studio service. It performs
// no retries; failed calls are logged once at this boundary and returned
// to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// New creates a client for the service at baseURL. The baseURL should
// include the protocol and port (e.g. "http://localhost:8000"); the
// timeout applies to every request made by this client.
func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Health verifies that the service is running and reports its component
// readiness.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var health HealthResponse

	err := c.getJSON(ctx, apiHealth, &health)
	if err != nil {
		return HealthResponse{}, c.fail("health check", err)
	}

	return health, nil
}

// ListVoices fetches the full catalog of known voices.
func (c *Client) ListVoices(ctx context.Context) ([]core.Voice, error) {
	var voices []core.Voice

	err := c.getJSON(ctx, apiVoices, &voices)
	if err != nil {
		return nil, c.fail("list voices", err)
	}

	return voices, nil
}

// VoiceStatus fetches the lifecycle status of a single voice.
func (c *Client) VoiceStatus(ctx context.Context, id string) (VoiceStatusResponse, error) {
	var status VoiceStatusResponse

	err := c.getJSON(ctx, fmt.Sprintf(voiceStatusPathFormat, url.PathEscape(id)), &status)
	if err != nil {
		return VoiceStatusResponse{}, c.fail("voice status", err)
	}

	return status, nil
}

// CloneVoice submits audio samples to create a new voice. The request is
// encoded as a multipart form with one part per sample file.
func (c *Client) CloneVoice(ctx context.Context, req CloneRequest) (CloneResponse, error) {
	if req.Name == "" {
		return CloneResponse{}, c.fail("clone voice", ErrCloneNameEmpty)
	}

	if len(req.Files) == 0 {
		return CloneResponse{}, c.fail("clone voice", ErrCloneNoFiles)
	}

	body, contentType, err := encodeCloneForm(req)
	if err != nil {
		return CloneResponse{}, c.fail("clone voice", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiVoicesClone,
		body,
	)
	if err != nil {
		return CloneResponse{}, c.fail("clone voice", fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set(headerContentType, contentType)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	var resp CloneResponse

	err = c.doJSON(httpReq, &resp)
	if err != nil {
		return CloneResponse{}, c.fail("clone voice", err)
	}

	return resp, nil
}

// DeleteVoice removes a voice from the service.
func (c *Client) DeleteVoice(ctx context.Context, id string) (DeleteResponse, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodDelete,
		c.baseURL+fmt.Sprintf(voicePathFormat, url.PathEscape(id)),
		http.NoBody,
	)
	if err != nil {
		return DeleteResponse{}, c.fail("delete voice", fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set(headerAccept, contentTypeJSON)

	var resp DeleteResponse

	err = c.doJSON(httpReq, &resp)
	if err != nil {
		return DeleteResponse{}, c.fail("delete voice", err)
	}

	return resp, nil
}

// Generate synthesizes speech for the given text and voice.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (core.GenerationResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return core.GenerationResult{}, c.fail("generate speech", ErrTextEmpty)
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return core.GenerationResult{}, c.fail("generate speech", fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerate,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return core.GenerationResult{}, c.fail("generate speech", fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	var result core.GenerationResult

	err = c.doJSON(httpReq, &result)
	if err != nil {
		return core.GenerationResult{}, c.fail("generate speech", err)
	}

	return result, nil
}

// ListLanguages fetches the supported language catalog.
func (c *Client) ListLanguages(ctx context.Context) ([]core.LanguageEntry, error) {
	var resp languagesResponse

	err := c.getJSON(ctx, apiLanguages, &resp)
	if err != nil {
		return nil, c.fail("list languages", err)
	}

	return resp.Languages, nil
}

// DownloadAudio fetches generated audio bytes. The audioURL may be
// relative (the service reports URLs like "/outputs/<filename>") or
// absolute.
func (c *Client) DownloadAudio(ctx context.Context, audioURL string) ([]byte, error) {
	target := audioURL
	if strings.HasPrefix(audioURL, "/") {
		target = c.baseURL + audioURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, c.fail("download audio", fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.fail("download audio", fmt.Errorf("failed to send request to %s: %w", target, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.fail("download audio", newAPIError(resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail("download audio", fmt.Errorf("failed to read audio data: %w", err))
	}

	if len(data) == 0 {
		return nil, c.fail("download audio", ErrEmptyAudio)
	}

	return data, nil
}

// getJSON performs a GET against path and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+path,
		http.NoBody,
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerAccept, contentTypeJSON)

	return c.doJSON(httpReq, out)
}

// doJSON executes the request, mapping non-2xx responses to *APIError and
// decoding successful JSON bodies into out.
func (c *Client) doJSON(httpReq *http.Request, out any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf(
			"failed to send request to service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newAPIError(resp)
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// fail logs a failed operation exactly once at the gateway boundary and
// returns the error unchanged for the caller to handle.
func (c *Client) fail(operation string, err error) error {
	if c.log != nil {
		c.log.Error("Gateway %s failed: %v", operation, err)
	}

	return err
}

// encodeCloneForm builds the multipart body for a clone submission:
// name and description fields followed by one "files" part per sample.
func encodeCloneForm(req CloneRequest) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	err := writer.WriteField(formFieldName, req.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write name field: %w", err)
	}

	err = writer.WriteField(formFieldDescription, req.Description)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write description field: %w", err)
	}

	for _, file := range req.Files {
		part, partErr := writer.CreateFormFile(formFieldFiles, file.Name)
		if partErr != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", partErr)
		}

		_, copyErr := io.Copy(part, file.Data)
		if copyErr != nil {
			return nil, "", fmt.Errorf("failed to copy file data: %w", copyErr)
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
