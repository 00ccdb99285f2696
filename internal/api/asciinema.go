package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"runtime"
	"strings"
	"time"
)

const (
	uploadPath     = "/api/asciicasts"
	uploadField    = "asciicast"
	uploadFileName = "ascii.cast"
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4 << 10
)

// UploadError is returned when the server rejects an upload.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("upload failed: %s", http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("upload failed: %s: %s", http.StatusText(e.StatusCode), body)
}

// Asciinema is the Service for asciinema.org and self-hosted servers.
type Asciinema struct {
	server    string
	installID string
	client    *http.Client
	userAgent string
}

type Option func(*Asciinema)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Asciinema) { a.client = c }
}

func NewAsciinema(server, installID string, opts ...Option) *Asciinema {
	a := &Asciinema{
		server:    strings.TrimRight(server, "/"),
		installID: installID,
		client:    &http.Client{Timeout: defaultTimeout},
		userAgent: fmt.Sprintf("asciinema/2.0.0 powersession/%s-%s", runtime.GOOS, runtime.GOARCH),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ConnectURL is where a user links this install id to their account.
func (a *Asciinema) ConnectURL() string {
	return a.server + "/connect/" + a.installID
}

func (a *Asciinema) Authenticate(w io.Writer) error {
	_, err := fmt.Fprintf(w, `Open the following URL in a web browser to link your install ID with your %[1]s user account:

    %[2]s

This will associate all recordings uploaded from this machine (past and future ones) to your account, and allow you to manage them (change title/theme, delete) at %[1]s.
`, a.server, a.ConnectURL())
	return err
}

func (a *Asciinema) Upload(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read recording: %w", err)
	}

	body, contentType, err := multipartBody(content)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.server+uploadPath, body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.userAgent)
	req.SetBasicAuth("user", a.installID)

	slog.Info("uploading recording", "path", path, "server", a.server, "bytes", len(content))
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload to %s: %w", a.server, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &UploadError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", errors.New("upload succeeded but the server returned no Location")
	}
	slog.Info("recording uploaded", "path", path, "url", location)
	return location, nil
}

func multipartBody(content []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, uploadFileName))
	h.Set("Content-Type", "plain/text")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
