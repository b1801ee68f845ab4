package onedrive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public OneDrive API, which resolves anonymous share links
const DefaultBaseURL = "https://api.onedrive.com/v1.0"

// ErrInvalidShareURL is returned for links that cannot be turned into a share token
var ErrInvalidShareURL = errors.New("invalid share URL")

// maxErrorBody caps how much of a failed response ends up in an error
const maxErrorBody = 512

// Service resolves OneDrive share links to drive items
type Service struct {
	httpClient *http.Client
	baseURL    string
}

// NewService creates a OneDrive service. An empty baseURL uses DefaultBaseURL
// and a nil client gets a 30 second timeout.
func NewService(baseURL string, httpClient *http.Client) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Service{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// ResolveShare fetches the drive item behind a share link
func (s *Service) ResolveShare(ctx context.Context, shareURL string) (*DriveItem, error) {
	shareToken, err := EncodeShareToken(shareURL)
	if err != nil {
		return nil, err
	}

	apiURL := fmt.Sprintf("%s/shares/%s/driveItem", s.baseURL, shareToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create shares request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute shares request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var item DriveItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode shares response: %w", err)
	}
	return &item, nil
}

// EncodeShareToken turns a share URL into the token the shares API expects:
// "u!" followed by the unpadded base64url encoding of the URL.
func EncodeShareToken(shareURL string) (string, error) {
	if err := validateShareURL(shareURL); err != nil {
		return "", err
	}
	return "u!" + base64.RawURLEncoding.EncodeToString([]byte(shareURL)), nil
}

func validateShareURL(shareURL string) error {
	if strings.TrimSpace(shareURL) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidShareURL)
	}
	parsed, err := url.Parse(shareURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidShareURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidShareURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidShareURL)
	}
	return nil
}
