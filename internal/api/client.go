package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	uploadHTTPTimeout  = 0 // uploads are bounded by the server, not the client
	httpTimeoutEnvKey  = "FSTASH_HTTP_TIMEOUT"
)

// Client is a simple HTTP client for the fstash API.
type Client struct {
	baseURL string
	http    *http.Client
	upload  *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
		upload:  &http.Client{Timeout: uploadHTTPTimeout},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// GetInfo fetches server diagnostics.
func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/info", nil, nil, &resp)
	return resp, err
}

// List fetches catalog entries, optionally filtered by kind.
func (c *Client) List(ctx context.Context, filter string) (ListResponse, error) {
	var resp ListResponse
	query := url.Values{}
	if filter != "" {
		query.Set("filter", filter)
	}
	err := c.do(ctx, http.MethodGet, "/list", query, nil, &resp)
	return resp, err
}

// Upload streams one file as a multipart POST /upload request.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (UploadResponse, error) {
	var resp UploadResponse

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, content); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	httpResp, err := c.upload.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

// Delete removes one stored file by id.
func (c *Client) Delete(ctx context.Context, id int64) (DeleteResponse, error) {
	var resp DeleteResponse
	err := c.do(ctx, http.MethodDelete, "/delete", nil, DeleteRequest{ID: id}, &resp)
	return resp, err
}

// Reconcile runs the orphan-blob and ledger-drift maintenance sweep.
func (c *Client) Reconcile(ctx context.Context, apply bool) (ReconcileResponse, error) {
	var resp ReconcileResponse
	query := url.Values{}
	if apply {
		query.Set("apply", "true")
	}
	err := c.do(ctx, http.MethodPost, "/admin/reconcile", query, nil, &resp)
	return resp, err
}

// Download streams stored blob content to a writer.
func (c *Client) Download(ctx context.Context, storageKey string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/uploads/"+url.PathEscape(storageKey), nil)
	if err != nil {
		return err
	}
	resp, err := c.upload.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	payload := ErrorResponse{}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &payload)
	}
	message := payload.Error
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Code: payload.Code, Message: message}
}

func httpTimeoutFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if raw == "" {
		return defaultHTTPTimeout
	}
	if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultHTTPTimeout
}
