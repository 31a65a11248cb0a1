// Package client talks to the reconciliation backend and falls back to
// synthetic data whenever the backend cannot produce a result.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"reconboard/internal/domain"
	"reconboard/internal/excel"
	"reconboard/internal/logger"
	"reconboard/internal/mockdata"
)

const (
	DefaultHealthTimeout = 1 * time.Second
	DefaultUploadTimeout = 30 * time.Second
	DefaultFallbackDelay = 600 * time.Millisecond
)

// File is one local spreadsheet to send. Size is used for validation before
// anything goes over the wire.
type File struct {
	Name   string
	Size   int64
	Reader io.Reader
}

type Files struct {
	Taobao *File
	JD     *File
	Bank   *File
}

// Result is what the dashboard renders. Err holds the backend failure that
// caused a synthetic fallback, for diagnostics only.
type Result struct {
	Response domain.UploadResponse
	Source   domain.DataSource
	Err      error
}

func (r Result) Synthetic() bool {
	return r.Source == domain.SourceSynthetic
}

type Options struct {
	HealthTimeout time.Duration
	UploadTimeout time.Duration
	FallbackDelay time.Duration
	FallbackCount int
	Synthesizer   *mockdata.Synthesizer
	Logger        *logger.Logger
}

type Client struct {
	baseURL       string
	httpClient    *http.Client
	healthTimeout time.Duration
	uploadTimeout time.Duration
	fallbackDelay time.Duration
	fallbackCount int
	synth         *mockdata.Synthesizer
	log           *logger.Logger
}

func New(baseURL string, opts Options) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		healthTimeout: opts.HealthTimeout,
		uploadTimeout: opts.UploadTimeout,
		fallbackDelay: opts.FallbackDelay,
		fallbackCount: opts.FallbackCount,
		synth:         opts.Synthesizer,
		log:           opts.Logger,
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = DefaultHealthTimeout
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = DefaultUploadTimeout
	}
	if c.fallbackDelay < 0 {
		c.fallbackDelay = 0
	}
	if c.fallbackCount <= 0 {
		c.fallbackCount = mockdata.DefaultCount
	}
	if c.synth == nil {
		c.synth = mockdata.New()
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	return c
}

// CheckHealth reports whether the backend answered its root endpoint with a
// 2xx status within the health timeout.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Upload validates the files, posts them to the backend and returns its
// reconciliation. Files may be omitted; an empty selection is still posted.
// Validation failures are returned as errors and nothing is sent. Every backend failure is downgraded to a synthetic result; there are
// no retries.
func (c *Client) Upload(ctx context.Context, files Files) (Result, error) {
	present := files.present()
	for _, p := range present {
		if err := excel.ValidateFile(p.file.Name, p.file.Size); err != nil {
			return Result{}, err
		}
	}

	resp, err := c.post(ctx, present)
	if err == nil {
		return Result{Response: resp, Source: domain.SourceBackend}, nil
	}

	c.log.Warn().Err(err).Str("backend", c.baseURL).Msg("backend upload failed, using synthetic data")
	c.pace(ctx)
	return Result{
		Response: c.synth.Response(c.fallbackCount),
		Source:   domain.SourceSynthetic,
		Err:      err,
	}, nil
}

type namedFile struct {
	field string
	file  *File
}

func (f Files) present() []namedFile {
	out := make([]namedFile, 0, 3)
	for _, nf := range []namedFile{
		{"taobao_file", f.Taobao},
		{"jd_file", f.JD},
		{"bank_file", f.Bank},
	} {
		if nf.file != nil {
			out = append(out, nf)
		}
	}
	return out
}

func (c *Client) post(ctx context.Context, files []namedFile) (domain.UploadResponse, error) {
	body, contentType, err := encodeMultipart(files)
	if err != nil {
		return domain.UploadResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return domain.UploadResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.UploadResponse{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return domain.UploadResponse{}, fmt.Errorf("unexpected status: %d, body: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out domain.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.UploadResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Records == nil {
		out.Records = []domain.OrderRecord{}
	}
	return out, nil
}

func encodeMultipart(files []namedFile) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, nf := range files {
		part, err := mw.CreateFormFile(nf.field, nf.file.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", nf.field, err)
		}
		if nf.file.Reader != nil {
			if _, err := io.Copy(part, nf.file.Reader); err != nil {
				return nil, "", fmt.Errorf("read %s: %w", nf.file.Name, err)
			}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// pace waits out the fallback delay. A cancelled context skips the wait.
func (c *Client) pace(ctx context.Context) {
	if c.fallbackDelay == 0 {
		return
	}
	timer := time.NewTimer(c.fallbackDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
