package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tversen/flick/internal/domain"
)

const (
	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
)

// Client implements domain.ServerClient against a Jellyfin-compatible server
type Client struct {
	baseURL    string
	token      string
	userID     string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new server API client
func NewClient(baseURL, token, userID, deviceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		userID:   userID,
		deviceID: deviceID,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// BaseURL returns the normalized server URL
func (c *Client) BaseURL() string { return c.baseURL }

// Token returns the access token for stream URL building
func (c *Client) Token() string { return c.token }

// buildAuthHeader builds the MediaBrowser authorization header
func (c *Client) buildAuthHeader() string {
	parts := []string{
		`MediaBrowser Client="Flick"`,
		`Device="CLI"`,
		fmt.Sprintf(`DeviceId="%s"`, c.deviceID),
		`Version="1.0.0"`,
	}
	if c.token != "" {
		parts = append(parts, fmt.Sprintf(`Token="%s"`, c.token))
	}
	return strings.Join(parts, ", ")
}

// doRequest performs an authenticated HTTP request to the server API.
// Includes retry logic with exponential backoff for 5xx server errors.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, path)
	if query != nil {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Check context before each attempt
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Wait before retry (exponential backoff)
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reqBody io.Reader
		if bodyBytes != nil {
			reqBody = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Emby-Authorization", c.buildAuthHeader())
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		c.logger.Debug("server request", "method", method, "url", reqURL, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error("server request failed", "error", err)
			return nil, domain.ErrServerOffline
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, domain.ErrAuthFailed
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, domain.ErrItemNotFound
		}

		// Retry on 5xx server errors
		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			lastErr = fmt.Errorf("server error: %d - %s", resp.StatusCode, string(body))
			c.logger.Warn("server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", maxRetries,
				"path", path,
			)
			continue
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			c.logger.Error("server request error", "status", resp.StatusCode, "body", string(body))
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return body, nil
	}

	c.logger.Error("server request failed after retries", "error", lastErr, "path", path)
	return nil, lastErr
}

// GetItem fetches an item with media sources and user state
func (c *Client) GetItem(ctx context.Context, itemID string) (domain.MediaItem, error) {
	query := url.Values{}
	query.Set("UserId", c.userID)
	query.Set("Fields", "MediaSources,MediaStreams,Trickplay")

	body, err := c.doRequest(ctx, http.MethodGet, "/Items/"+itemID, query, nil)
	if err != nil {
		return domain.MediaItem{}, err
	}

	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return domain.MediaItem{}, fmt.Errorf("failed to parse item: %w", err)
	}

	return mapItem(item), nil
}

// GetPlaybackInfo negotiates playback for an item: the device profile goes
// up, resolved media sources and a play session id come back
func (c *Client) GetPlaybackInfo(ctx context.Context, req domain.PlaybackInfoRequest) (domain.PlaybackInfo, error) {
	dto := PlaybackInfoRequest{
		UserID:               c.userID,
		MediaSourceID:        req.MediaSourceID,
		MaxStreamingBitrate:  req.MaxBitrate,
		StartTimeTicks:       int64(req.StartTicks),
		DeviceProfile:        mapDeviceProfile(req.Profile),
		EnableDirectPlay:     req.EnableDirectPlay,
		EnableDirectStream:   req.EnableDirectStream,
		EnableTranscoding:    req.EnableTranscoding,
		AllowVideoStreamCopy: true,
		AllowAudioStreamCopy: true,
		AutoOpenLiveStream:   true,
	}
	if req.AudioStreamIndex >= 0 {
		idx := req.AudioStreamIndex
		dto.AudioStreamIndex = &idx
	}
	if req.SubtitleStreamIndex >= 0 {
		idx := req.SubtitleStreamIndex
		dto.SubtitleStreamIndex = &idx
	}

	path := fmt.Sprintf("/Items/%s/PlaybackInfo", req.ItemID)
	body, err := c.doRequest(ctx, http.MethodPost, path, nil, dto)
	if err != nil {
		return domain.PlaybackInfo{}, err
	}

	var resp PlaybackInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.PlaybackInfo{}, fmt.Errorf("failed to parse playback info: %w", err)
	}
	if resp.ErrorCode != "" {
		return domain.PlaybackInfo{}, &domain.StreamResolutionError{
			ItemID: req.ItemID,
			Reason: resp.ErrorCode,
		}
	}

	info := domain.PlaybackInfo{PlaySessionID: resp.PlaySessionID}
	for _, src := range resp.MediaSources {
		info.Sources = append(info.Sources, mapMediaSource(src))
	}
	return info, nil
}

// ReportStart announces a new playback session
func (c *Client) ReportStart(ctx context.Context, report domain.ProgressReport) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/Sessions/Playing", nil, mapReport(report))
	return err
}

// ReportProgress updates the server with the current position
func (c *Client) ReportProgress(ctx context.Context, report domain.ProgressReport) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/Sessions/Playing/Progress", nil, mapReport(report))
	return err
}

// ReportStopped finalizes a playback session
func (c *Client) ReportStopped(ctx context.Context, report domain.ProgressReport) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/Sessions/Playing/Stopped", nil, mapReport(report))
	return err
}

// GetSkipSegments fetches intro/outro ranges for an item
func (c *Client) GetSkipSegments(ctx context.Context, itemID string) ([]domain.SkipSegment, error) {
	query := url.Values{}
	query.Set("includeSegmentTypes", "Intro")
	query.Add("includeSegmentTypes", "Outro")

	body, err := c.doRequest(ctx, http.MethodGet, "/MediaSegments/"+itemID, query, nil)
	if err != nil {
		return nil, err
	}

	var resp MediaSegmentsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse media segments: %w", err)
	}

	return mapSegments(resp.Items), nil
}

// GetTrickplayConfigs lists available sprite resolutions per media source
func (c *Client) GetTrickplayConfigs(ctx context.Context, itemID string) ([]domain.TrickplayConfig, error) {
	query := url.Values{}
	query.Set("UserId", c.userID)
	query.Set("Fields", "Trickplay")

	body, err := c.doRequest(ctx, http.MethodGet, "/Items/"+itemID, query, nil)
	if err != nil {
		return nil, err
	}

	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("failed to parse item: %w", err)
	}

	return mapTrickplay(item.Trickplay), nil
}

// GetTrickplaySprite fetches one sprite sheet image
func (c *Client) GetTrickplaySprite(ctx context.Context, itemID, mediaSourceID string, width, spriteIndex int) ([]byte, error) {
	path := fmt.Sprintf("/Videos/%s/Trickplay/%d/%d.jpg", itemID, width, spriteIndex)
	query := url.Values{}
	query.Set("MediaSourceId", mediaSourceID)
	query.Set("api_key", c.token)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrServerOffline
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrItemNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sprite fetch failed: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// GetSubtitles fetches and parses a sidecar subtitle track. The url may be
// server-relative (as returned by stream resolution) or absolute.
func (c *Client) GetSubtitles(ctx context.Context, subtitleURL string) ([]domain.SubtitleCue, error) {
	if strings.HasPrefix(subtitleURL, "/") {
		subtitleURL = c.baseURL + subtitleURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subtitleURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Emby-Authorization", c.buildAuthHeader())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrServerOffline
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subtitle fetch failed: status %d", resp.StatusCode)
	}

	return ParseWebVTT(resp.Body)
}

// SetFavorite marks or unmarks an item as favorite
func (c *Client) SetFavorite(ctx context.Context, itemID string, favorite bool) error {
	path := fmt.Sprintf("/Users/%s/FavoriteItems/%s", c.userID, itemID)
	method := http.MethodPost
	if !favorite {
		method = http.MethodDelete
	}
	_, err := c.doRequest(ctx, method, path, nil, nil)
	return err
}

// SubtitleSidecarURL builds the server-relative URL for a text subtitle
// stream delivered as a sidecar file
func SubtitleSidecarURL(itemID, mediaSourceID string, streamIndex int, startTicks domain.Ticks) string {
	return fmt.Sprintf("/Videos/%s/%s/Subtitles/%d/%s/Stream.vtt",
		itemID, mediaSourceID, streamIndex, strconv.FormatInt(int64(startTicks), 10))
}
