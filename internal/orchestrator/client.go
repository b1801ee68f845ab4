package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"worksheet-sync/internal/worksheets"
	"worksheet-sync/pkg/models"
)

// ErrRemoteUnavailable wraps every failure to reach or use the worksheet API
var ErrRemoteUnavailable = errors.New("worksheet API unavailable")

// HTTPError is a non-2xx answer from the worksheet API
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// APIClient talks to the worksheet HTTP API
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a client for the API at baseURL. A zero timeout means 15s.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) List(ctx context.Context) (*worksheets.ListResponse, error) {
	var out worksheets.ListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/worksheets", nil, &out); err != nil {
		return nil, err
	}
	if out.Sheets == nil {
		out.Sheets = make([]models.Sheet, 0)
	}
	if out.Folders == nil {
		out.Folders = make([]string, 0)
	}
	return &out, nil
}

func (c *APIClient) CreateSheet(ctx context.Context, input models.SheetInput) (models.Sheet, error) {
	body := worksheets.CreateRequest{
		ID:     input.ID,
		Title:  input.Title,
		URL:    input.URL,
		Folder: input.Folder,
		Embed:  input.Embed,
	}
	var out worksheets.CreateSheetResponse
	if err := c.doJSON(ctx, http.MethodPost, "/worksheets", body, &out); err != nil {
		return models.Sheet{}, err
	}
	if out.Sheet.ID == "" {
		return models.Sheet{}, fmt.Errorf("%w: response carried no sheet", ErrRemoteUnavailable)
	}
	return out.Sheet, nil
}

func (c *APIClient) CreateFolder(ctx context.Context, name string) (string, error) {
	body := worksheets.CreateRequest{Type: string(models.PartitionFolder), Name: name}
	var out worksheets.CreateFolderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/worksheets", body, &out); err != nil {
		return "", err
	}
	if out.Folder == "" {
		return name, nil
	}
	return out.Folder, nil
}

func (c *APIClient) Delete(ctx context.Context, kind models.PartitionKind, id string) error {
	query := url.Values{}
	query.Set("type", string(kind))
	requestPath := "/worksheets/" + url.PathEscape(id) + "?" + query.Encode()
	return c.doJSON(ctx, http.MethodDelete, requestPath, nil, nil)
}

func (c *APIClient) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	payload, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, newHTTPError(resp.StatusCode, payload))
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrRemoteUnavailable, err)
	}
	return nil
}

func newHTTPError(status int, payload []byte) *HTTPError {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	message := strings.TrimSpace(string(payload))
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != "" {
		message = body.Error
		if body.Detail != "" {
			message += ": " + body.Detail
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &HTTPError{StatusCode: status, Message: message}
}
