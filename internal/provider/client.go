// Package provider talks to a Zoom-style meetings REST API.
package provider

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

	"go.uber.org/zap"

	"github.com/djlord-it/easy-meetings/internal/domain"
)

const (
	DefaultBaseURL = "https://api.zoom.us/v2"
	DefaultUserID  = "me"

	// startTimeLayout is a local wall-clock time; the zone travels in "timezone".
	startTimeLayout = "2006-01-02T15:04:05"

	scheduledMeeting = 2
)

// ErrMalformedResponse marks a success response whose body could not be read
// as a meeting. The meeting may exist remotely.
var ErrMalformedResponse = errors.New("malformed meeting response")

// Config holds the provider account settings.
type Config struct {
	BaseURL       string
	UserID        string
	APIKey        string
	APISecret     string
	AutoRecording string // "cloud", "local" or "none"
	Timeout       time.Duration
}

// Client implements meeting create/update/delete over HTTP.
type Client struct {
	cfg    Config
	http   *http.Client
	clock  func() time.Time
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserID == "" {
		cfg.UserID = DefaultUserID
	}
	if cfg.AutoRecording == "" {
		cfg.AutoRecording = "cloud"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		clock:  time.Now,
		logger: logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// WithClock replaces the time source used for token issuance.
func (c *Client) WithClock(clock func() time.Time) *Client {
	c.clock = clock
	return c
}

// Host identifies the provider endpoint, used as the circuit breaker key.
func (c *Client) Host() string {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil || u.Host == "" {
		return c.cfg.BaseURL
	}
	return u.Host
}

type meetingSettings struct {
	HostVideo        bool   `json:"host_video"`
	ParticipantVideo bool   `json:"participant_video"`
	JoinBeforeHost   bool   `json:"join_before_host"`
	MuteUponEntry    bool   `json:"mute_upon_entry"`
	WaitingRoom      bool   `json:"waiting_room"`
	AutoRecording    string `json:"auto_recording"`
}

type meetingBody struct {
	Topic     string           `json:"topic"`
	Type      int              `json:"type,omitempty"`
	StartTime string           `json:"start_time"`
	Duration  int              `json:"duration"`
	Timezone  string           `json:"timezone"`
	Settings  *meetingSettings `json:"settings,omitempty"`
}

type meetingResponse struct {
	ID      json.Number `json:"id"`
	JoinURL string      `json:"join_url"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) body(req domain.MeetingRequest, withSettings bool) meetingBody {
	b := meetingBody{
		Topic:     req.Topic,
		StartTime: req.Start.Format(startTimeLayout),
		Duration:  req.DurationMinutes,
		Timezone:  req.Timezone,
	}
	if withSettings {
		b.Type = scheduledMeeting
		b.Settings = &meetingSettings{
			HostVideo:        true,
			ParticipantVideo: true,
			JoinBeforeHost:   false,
			MuteUponEntry:    true,
			WaitingRoom:      true,
			AutoRecording:    c.cfg.AutoRecording,
		}
	}
	return b
}

// Create hosts a new scheduled meeting. Success is 201 with the meeting id and join URL.
func (c *Client) Create(ctx context.Context, req domain.MeetingRequest) domain.ProviderResult {
	path := "/users/" + url.PathEscape(c.cfg.UserID) + "/meetings"
	res, raw := c.do(ctx, http.MethodPost, path, c.body(req, true))
	if res.Err != nil || !res.IsSuccess() {
		return res
	}

	var m meetingResponse
	decodeErr := json.Unmarshal(raw, &m)

	if res.StatusCode != http.StatusCreated {
		fields := []zap.Field{zap.Int("status", res.StatusCode), zap.String("topic", req.Topic)}
		if decodeErr == nil && m.ID.String() != "" {
			fields = append(fields, zap.String("remote_id", m.ID.String()))
		}
		c.logger.Error("provider returned unexpected success status, meeting may exist remotely", fields...)
		res.Err = fmt.Errorf("create: unexpected status %d", res.StatusCode)
		return res
	}

	if decodeErr != nil {
		res.Err = fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
		return res
	}
	if m.ID.String() == "" {
		res.Err = fmt.Errorf("%w: missing id", ErrMalformedResponse)
		return res
	}
	res.Meeting = domain.RemoteMeeting{ID: m.ID.String(), JoinURL: m.JoinURL}

	c.logger.Info("provider meeting created",
		zap.String("remote_id", res.Meeting.ID),
		zap.String("topic", req.Topic),
		zap.Duration("duration", res.Duration),
	)
	return res
}

// Update patches the meeting's topic, start and duration. Success is 204.
func (c *Client) Update(ctx context.Context, remoteID string, req domain.MeetingRequest) domain.ProviderResult {
	res, _ := c.do(ctx, http.MethodPatch, "/meetings/"+url.PathEscape(remoteID), c.body(req, false))
	res.Meeting.ID = remoteID
	return res
}

// Delete removes the meeting. Success is 204; 404 is reported as-is.
func (c *Client) Delete(ctx context.Context, remoteID string) domain.ProviderResult {
	res, _ := c.do(ctx, http.MethodDelete, "/meetings/"+url.PathEscape(remoteID), nil)
	res.Meeting.ID = remoteID
	return res
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (domain.ProviderResult, []byte) {
	start := c.clock()
	elapsed := func() time.Duration { return c.clock().Sub(start) }

	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return domain.ProviderResult{Err: fmt.Errorf("marshal: %w", err), Duration: elapsed()}, nil
		}
		reader = bytes.NewReader(body)
	}

	token, err := signToken(c.cfg.APIKey, c.cfg.APISecret, c.clock())
	if err != nil {
		return domain.ProviderResult{Err: err, Duration: elapsed()}, nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return domain.ProviderResult{Err: fmt.Errorf("create request: %w", err), Duration: elapsed()}, nil
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.ProviderResult{Err: fmt.Errorf("%s %s: %w", method, path, err), Duration: elapsed()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	res := domain.ProviderResult{StatusCode: resp.StatusCode, Duration: elapsed()}
	if err != nil {
		res.Err = fmt.Errorf("read response: %w", err)
		return res, nil
	}

	if !res.IsSuccess() {
		var apiErr errorResponse
		if json.Unmarshal(raw, &apiErr) == nil {
			res.Message = apiErr.Message
		}
		c.logger.Warn("provider request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", res.Message),
		)
	}
	return res, raw
}
