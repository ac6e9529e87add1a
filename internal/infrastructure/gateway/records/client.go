// Package records talks to the remote record service over HTTP.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"github.com/transono/voicememo/internal/app"
	"github.com/transono/voicememo/internal/application/port/output"
)

// Server timestamp layouts. createdAt/updatedAt carry microseconds, datetime
// is truncated to the minute, and upload datetime is sent at second precision.
const (
	timestampLayout      = "2006-01-02T15:04:05.999999"
	datetimeLayout       = "2006-01-02T15:04"
	uploadDatetimeLayout = "2006-01-02T15:04:05"
)

// Client implements output.RecordsGateway against the record service REST API
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     output.TokenProvider
	fs         afero.Fs
	audioDir   string
	pdfDir     string
}

func NewClient(baseURL string, timeout time.Duration, tokens output.TokenProvider, fs afero.Fs, audioDir, pdfDir string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		tokens:     tokens,
		fs:         fs,
		audioDir:   audioDir,
		pdfDir:     pdfDir,
	}
}

// recordPayload is the wire shape of one record. Timestamps arrive as strings
// in two different layouts, so they are parsed after decoding.
type recordPayload struct {
	ID          int64    `json:"id"`
	FolderID    *int64   `json:"folderId"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Datetime    *string  `json:"datetime"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Duration    *int64   `json:"duration"`
	Category    *string  `json:"category"`
	AudioURL    *string  `json:"audioUrl"`
	CreatedAt   *string  `json:"createdAt"`
	UpdatedAt   *string  `json:"updatedAt"`
}

type pagePayload struct {
	Content       []recordPayload `json:"content"`
	TotalElements int             `json:"totalElements"`
	TotalPages    int             `json:"totalPages"`
}

type apiErrorPayload struct {
	Message string `json:"message"`
}

func (p recordPayload) toRecord() output.RemoteRecord {
	return output.RemoteRecord{
		ID:          p.ID,
		FolderID:    p.FolderID,
		Title:       p.Title,
		Description: p.Description,
		Datetime:    parseServerTime(p.Datetime, datetimeLayout),
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Duration:    p.Duration,
		Category:    p.Category,
		AudioURL:    p.AudioURL,
		CreatedAt:   parseServerTime(p.CreatedAt, timestampLayout),
		UpdatedAt:   parseServerTime(p.UpdatedAt, timestampLayout),
	}
}

// parseServerTime tolerates malformed timestamps the way the callers expect a
// missing one: the record is still usable without it
func parseServerTime(s *string, layout string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(layout, *s)
	if err != nil {
		app.GetLogger().Warn("unparseable server timestamp %q: %v", *s, err)
		return nil
	}
	return &t
}

// FetchRecords requests one page of records
func (c *Client) FetchRecords(ctx context.Context, req output.FetchRecordsRequest) (*output.RecordsPage, error) {
	params := url.Values{}
	if req.Search != "" {
		params.Set("search", req.Search)
	}
	if req.FolderID != nil {
		params.Set("folderId", strconv.FormatInt(*req.FolderID, 10))
	}
	params.Set("page", strconv.Itoa(req.Page))
	params.Set("size", strconv.Itoa(req.PageSize))

	httpReq, err := c.newRequest(ctx, http.MethodGet, "/records?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var payload pagePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &output.DecodingError{Err: err}
	}

	page := &output.RecordsPage{
		Items:         make([]output.RemoteRecord, 0, len(payload.Content)),
		TotalPages:    payload.TotalPages,
		TotalElements: payload.TotalElements,
		Page:          req.Page,
	}
	for _, rec := range payload.Content {
		page.Items = append(page.Items, rec.toRecord())
	}

	app.GetLogger().Debug("fetched records page %d: %d items, %d pages total",
		req.Page, len(page.Items), page.TotalPages)
	return page, nil
}

// UploadRecord posts the audio file plus metadata as multipart form data
func (c *Client) UploadRecord(ctx context.Context, req output.UploadRecordRequest) (*output.RemoteRecord, error) {
	fileData, err := afero.ReadFile(c.fs, req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", output.ErrFileMissing, req.FilePath)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	fileName := filepath.Base(req.FilePath)
	if fileName == "." || fileName == "/" {
		fileName = "record.wav"
	}
	part, err := form.CreateFormFile("recordFile", fileName)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(fileData); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	fields := map[string]string{
		"name":     req.Name,
		"datetime": req.Datetime.Format(uploadDatetimeLayout),
		"category": req.Category,
	}
	if req.Place != "" {
		fields["place"] = req.Place
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/records", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var payload recordPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &output.DecodingError{Err: err}
	}

	rec := payload.toRecord()
	app.GetLogger().Info("uploaded record, server id %d", rec.ID)
	return &rec, nil
}

// DownloadAudio saves the record's audio into the audio directory and returns
// the local path
func (c *Client) DownloadAudio(ctx context.Context, recordID int64) (string, error) {
	dest := filepath.Join(c.audioDir, fmt.Sprintf("record-%d.wav", recordID))
	return c.downloadFile(ctx, fmt.Sprintf("/records/%d/audio", recordID), "audio/wav", dest)
}

// DownloadTranscriptPDF saves the record's transcript PDF and returns the
// local path
func (c *Client) DownloadTranscriptPDF(ctx context.Context, recordID int64) (string, error) {
	dest := filepath.Join(c.pdfDir, fmt.Sprintf("record-%d.pdf", recordID))
	return c.downloadFile(ctx, fmt.Sprintf("/records/%d/pdf", recordID), "application/pdf", dest)
}

func (c *Client) downloadFile(ctx context.Context, path, accept, dest string) (string, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Accept", accept)

	body, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	if err := c.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("prepare download directory: %w", err)
	}
	if err := afero.WriteFile(c.fs, dest, body, 0o644); err != nil {
		return "", fmt.Errorf("save download: %w", err)
	}

	app.GetLogger().Info("downloaded %s to %s", path, dest)
	return dest, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.tokens.ValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// do executes the request and returns the body of a 2xx response. Non-2xx
// responses map to ErrAuthExpired (401) or NetworkError, preferring the API's
// own message when the error body decodes.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("record service request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read record service response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, output.ErrAuthExpired
	}

	var apiErr apiErrorPayload
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return nil, &output.NetworkError{StatusCode: resp.StatusCode, Body: apiErr.Message}
	}
	return nil, &output.NetworkError{StatusCode: resp.StatusCode, Body: string(body)}
}
