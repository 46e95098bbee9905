package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	CONTENT_URL     = "https://content.dropboxapi.com"
	UPLOAD_ENDPOINT = "/2/files/upload"
	USER_AGENT      = "particle-monitor/1.0.0"
	REQUEST_TIMEOUT = 2 * time.Minute
)

// Client uploads files to a Dropbox account with a static access token.
type Client struct {
	httpClient http.Client
	contentURL string
	token      string
	logger     *slog.Logger
}

type uploadArg struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Autorename bool   `json:"autorename"`
	Mute       bool   `json:"mute"`
}

type apiError struct {
	ErrorSummary string `json:"error_summary"`
}

func NewClient(token string) *Client {
	return NewClientWithLogger(token, nil)
}

func NewClientWithLogger(token string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: http.Client{
			Timeout: REQUEST_TIMEOUT,
		},
		contentURL: CONTENT_URL,
		token:      token,
		logger:     logger,
	}
}

// WithContentURL points the client at another content host, such as a
// proxy or a local test server.
func (client *Client) WithContentURL(url string) *Client {
	if url != "" {
		client.contentURL = strings.TrimSuffix(url, "/")
	}
	return client
}

func (client *Client) log(level slog.Level, msg string, args ...any) {
	if client.logger != nil {
		client.logger.Log(context.Background(), level, msg, args...)
	}
}

// Upload stores content at remotePath. An existing file of the same name is
// kept and the upload is renamed by Dropbox.
func (client *Client) Upload(ctx context.Context, content []byte, remotePath string) error {
	_, err := client.UploadWithMetadata(ctx, content, remotePath)
	return err
}

// UploadWithMetadata is Upload returning the metadata of the created file.
func (client *Client) UploadWithMetadata(ctx context.Context, content []byte, remotePath string) (*FileMetadata, error) {
	arg, err := json.Marshal(uploadArg{
		Path:       remotePath,
		Mode:       "add",
		Autorename: true,
		Mute:       false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload argument: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.contentURL+UPLOAD_ENDPOINT, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+client.token)
	request.Header.Set("Dropbox-API-Arg", string(arg))
	request.Header.Set("Content-Type", "application/octet-stream")
	request.Header.Set("User-Agent", USER_AGENT)

	client.log(slog.LevelDebug, "Uploading file", "path", remotePath, "bytes", len(content))

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", remotePath, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorSummary != "" {
			return nil, fmt.Errorf("failed to upload %s: %s: %s", remotePath, response.Status, apiErr.ErrorSummary)
		}
		return nil, fmt.Errorf("failed to upload %s: %s", remotePath, response.Status)
	}

	var metadata FileMetadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	client.log(slog.LevelInfo, "File uploaded", "path", metadata.PathDisplay, "size", metadata.Size)

	return &metadata, nil
}
