// File: internal/appium/client.go

// Package appium is a minimal WebDriver HTTP client for driving an Android
// device through an Appium server. It speaks the raw endpoints instead of
// wrapping a full WebDriver library so the surface stays auditable and the
// dependency footprint small.
package appium

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/matchpilot/internal/policy"
)

// W3C and legacy JSONWire element keys.
const (
	w3cElementKey    = "element-6066-11e4-a52e-4f735466cecf"
	legacyElementKey = "ELEMENT"
)

// Error carries enough of the failed exchange to debug a driver issue
// without re-running the session.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
	Body       string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("appium: %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("appium: %s %s: %s", e.Method, e.URL, e.Message)
}

// ElementRef is an opaque handle to one on-screen element.
type ElementRef struct {
	ID string
}

// Rect is an element or window bounding box in screen pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Client drives one WebDriver session. It is not safe for concurrent use;
// the control loop owns it for the lifetime of a run.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	sessionID  string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outbound driver calls. UIAutomator falls over under
// aggressive polling, so the default allows short bursts but holds a steady
// ceiling.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient builds a client for the given Appium server base URL.
func NewClient(serverURL string, opts ...Option) (*Client, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if serverURL == "" {
		return nil, fmt.Errorf("appium: server URL is required")
	}
	c := &Client{
		baseURL:    serverURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SessionID returns the active session id, or "" before CreateSession.
func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("appium: rate limit wait: %w", err)
	}

	url := c.baseURL + path
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("appium: encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("appium: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Method: method, URL: url, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Method: method, URL: url, StatusCode: resp.StatusCode, Message: "read response: " + err.Error()}
	}

	var payload map[string]interface{}
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode >= 400 {
		message := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if decodeErr == nil {
			if detail := webdriverErrorDetail(payload); detail != "" {
				message = detail
			}
		}
		return nil, &Error{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Message:    message,
			Body:       string(raw),
		}
	}
	if decodeErr != nil {
		return nil, &Error{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Message:    "non-JSON response",
			Body:       string(raw),
		}
	}
	return payload, nil
}

// webdriverValue unwraps the W3C {"value": ...} envelope.
func webdriverValue(payload map[string]interface{}) interface{} {
	if v, ok := payload["value"]; ok {
		return v
	}
	return payload
}

func webdriverErrorDetail(payload map[string]interface{}) string {
	value, ok := webdriverValue(payload).(map[string]interface{})
	if !ok {
		return ""
	}
	for _, key := range []string{"error", "message"} {
		if s, ok := value[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func extractElementID(item interface{}) (string, error) {
	obj, ok := item.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("appium: unexpected element payload type %T", item)
	}
	if id, ok := obj[w3cElementKey].(string); ok && id != "" {
		return id, nil
	}
	if id, ok := obj[legacyElementKey].(string); ok && id != "" {
		return id, nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	return "", fmt.Errorf("appium: no element id in payload keys %v", keys)
}

// CreateSession opens a WebDriver session. The payload must already be a
// valid session creation document, most commonly
// {"capabilities": {"alwaysMatch": {...}, "firstMatch": [{}]}}; no defaults
// are guessed here.
func (c *Client) CreateSession(ctx context.Context, payload map[string]interface{}) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("appium: session payload must be a non-empty object")
	}
	resp, err := c.request(ctx, http.MethodPost, "/session", payload)
	if err != nil {
		return "", err
	}

	var sessionID string
	if value, ok := webdriverValue(resp).(map[string]interface{}); ok {
		sessionID, _ = value["sessionId"].(string)
	}
	if sessionID == "" {
		sessionID, _ = resp["sessionId"].(string)
	}
	if sessionID == "" {
		return "", &Error{
			Method:  http.MethodPost,
			URL:     c.baseURL + "/session",
			Message: "no sessionId in create session response",
		}
	}
	c.sessionID = sessionID
	return sessionID, nil
}

// DeleteSession tears the session down. Safe to call when no session exists.
func (c *Client) DeleteSession(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	id := c.sessionID
	c.sessionID = ""
	_, err := c.request(ctx, http.MethodDelete, "/session/"+id, nil)
	return err
}

func (c *Client) requireSession() error {
	if c.sessionID == "" {
		return fmt.Errorf("appium: no active session, call CreateSession first")
	}
	return nil
}

// PageSource returns the full accessibility XML dump of the current screen.
func (c *Client) PageSource(ctx context.Context) (string, error) {
	if err := c.requireSession(); err != nil {
		return "", err
	}
	resp, err := c.request(ctx, http.MethodGet, "/session/"+c.sessionID+"/source", nil)
	if err != nil {
		return "", err
	}
	source, ok := webdriverValue(resp).(string)
	if !ok {
		return "", fmt.Errorf("appium: unexpected /source response shape, expected string")
	}
	return source, nil
}

// ScreenshotPNG captures the screen and decodes the base64 payload.
func (c *Client) ScreenshotPNG(ctx context.Context) ([]byte, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	resp, err := c.request(ctx, http.MethodGet, "/session/"+c.sessionID+"/screenshot", nil)
	if err != nil {
		return nil, err
	}
	encoded, ok := webdriverValue(resp).(string)
	if !ok {
		return nil, fmt.Errorf("appium: unexpected /screenshot response shape, expected base64 string")
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("appium: decode screenshot base64: %w", err)
	}
	return decoded, nil
}

// WindowRect returns the device viewport rectangle.
func (c *Client) WindowRect(ctx context.Context) (Rect, error) {
	if err := c.requireSession(); err != nil {
		return Rect{}, err
	}
	resp, err := c.request(ctx, http.MethodGet, "/session/"+c.sessionID+"/window/rect", nil)
	if err != nil {
		return Rect{}, err
	}
	return rectFromValue(webdriverValue(resp))
}

func rectFromValue(value interface{}) (Rect, error) {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return Rect{}, fmt.Errorf("appium: unexpected rect response shape, expected object")
	}
	var r Rect
	for key, dst := range map[string]*int{"x": &r.X, "y": &r.Y, "width": &r.Width, "height": &r.Height} {
		num, ok := obj[key].(float64)
		if !ok {
			return Rect{}, fmt.Errorf("appium: rect response missing numeric %q", key)
		}
		*dst = int(num)
	}
	return r, nil
}

// FindElements resolves a locator to zero or more element handles. An empty
// result is not an error; callers decide whether absence matters.
func (c *Client) FindElements(ctx context.Context, loc policy.Locator) ([]ElementRef, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("appium: %w", err)
	}
	resp, err := c.request(ctx, http.MethodPost, "/session/"+c.sessionID+"/elements",
		map[string]interface{}{"using": loc.Using, "value": loc.Value})
	if err != nil {
		return nil, err
	}
	items, ok := webdriverValue(resp).([]interface{})
	if !ok {
		return nil, fmt.Errorf("appium: unexpected /elements response shape, expected list")
	}
	elements := make([]ElementRef, 0, len(items))
	for _, item := range items {
		id, err := extractElementID(item)
		if err != nil {
			return nil, err
		}
		elements = append(elements, ElementRef{ID: id})
	}
	return elements, nil
}

// Click taps the element.
func (c *Client) Click(ctx context.Context, el ElementRef) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	_, err := c.request(ctx, http.MethodPost,
		"/session/"+c.sessionID+"/element/"+el.ID+"/click", map[string]interface{}{})
	return err
}

// SendKeys types text into the element. Both the W3C `text` field and the
// legacy `value` char array are sent; servers differ on which they honor.
func (c *Client) SendKeys(ctx context.Context, el ElementRef, text string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	chars := make([]string, 0, len(text))
	for _, r := range text {
		chars = append(chars, string(r))
	}
	_, err := c.request(ctx, http.MethodPost,
		"/session/"+c.sessionID+"/element/"+el.ID+"/value",
		map[string]interface{}{"text": text, "value": chars})
	return err
}

// ElementText reads the element's visible text.
func (c *Client) ElementText(ctx context.Context, el ElementRef) (string, error) {
	if err := c.requireSession(); err != nil {
		return "", err
	}
	resp, err := c.request(ctx, http.MethodGet,
		"/session/"+c.sessionID+"/element/"+el.ID+"/text", nil)
	if err != nil {
		return "", err
	}
	text, ok := webdriverValue(resp).(string)
	if !ok {
		return "", fmt.Errorf("appium: unexpected element /text response shape, expected string")
	}
	return text, nil
}

// ElementRect returns the element's bounding box.
func (c *Client) ElementRect(ctx context.Context, el ElementRef) (Rect, error) {
	if err := c.requireSession(); err != nil {
		return Rect{}, err
	}
	resp, err := c.request(ctx, http.MethodGet,
		"/session/"+c.sessionID+"/element/"+el.ID+"/rect", nil)
	if err != nil {
		return Rect{}, err
	}
	return rectFromValue(webdriverValue(resp))
}

// Tap performs a W3C pointer tap at absolute viewport coordinates.
func (c *Client) Tap(ctx context.Context, x, y int) error {
	return c.performPointerActions(ctx, []map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": x, "y": y},
		{"type": "pointerDown", "button": 0},
		{"type": "pause", "duration": 50},
		{"type": "pointerUp", "button": 0},
	})
}

// Swipe drags a single touch pointer between two viewport points over the
// given duration. Durations under 1ms are rounded up so the server does not
// treat the move as instantaneous.
func (c *Client) Swipe(ctx context.Context, fromX, fromY, toX, toY int, duration time.Duration) error {
	ms := int(duration.Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return c.performPointerActions(ctx, []map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": fromX, "y": fromY},
		{"type": "pointerDown", "button": 0},
		{"type": "pointerMove", "duration": ms, "origin": "viewport", "x": toX, "y": toY},
		{"type": "pointerUp", "button": 0},
	})
}

func (c *Client) performPointerActions(ctx context.Context, actions []map[string]interface{}) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	_, err := c.request(ctx, http.MethodPost, "/session/"+c.sessionID+"/actions",
		map[string]interface{}{
			"actions": []map[string]interface{}{{
				"type":       "pointer",
				"id":         "finger1",
				"parameters": map[string]interface{}{"pointerType": "touch"},
				"actions":    actions,
			}},
		})
	return err
}

// PressKeyCode sends an Android keycode (4 is back).
func (c *Client) PressKeyCode(ctx context.Context, keycode int) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	_, err := c.request(ctx, http.MethodPost,
		"/session/"+c.sessionID+"/appium/device/press_keycode",
		map[string]interface{}{"keycode": keycode})
	return err
}
