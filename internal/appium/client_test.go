// File: internal/appium/client_test.go
package appium

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/matchpilot/internal/policy"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// fakeServer replays canned WebDriver responses keyed by "METHOD path" and
// records every request body it sees.
type fakeServer struct {
	t         *testing.T
	responses map[string]interface{}
	statuses  map[string]int
	requests  []recordedRequest
}

func newFakeServer(t *testing.T) (*fakeServer, *Client) {
	fs := &fakeServer{
		t:         t,
		responses: map[string]interface{}{},
		statuses:  map[string]int{},
	}
	srv := httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return fs, client
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	var body map[string]interface{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	fs.requests = append(fs.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})

	resp, ok := fs.responses[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"value": {"error": "unknown command", "message": "no route"}}`)
		return
	}
	if status, ok := fs.statuses[key]; ok {
		w.WriteHeader(status)
	}
	encoded, err := json.Marshal(resp)
	require.NoError(fs.t, err)
	_, _ = w.Write(encoded)
}

func (fs *fakeServer) lastBody() map[string]interface{} {
	require.NotEmpty(fs.t, fs.requests)
	return fs.requests[len(fs.requests)-1].Body
}

func startSession(t *testing.T, fs *fakeServer, client *Client) {
	fs.responses["POST /session"] = map[string]interface{}{
		"value": map[string]interface{}{"sessionId": "abc123", "capabilities": map[string]interface{}{}},
	}
	id, err := client.CreateSession(context.Background(), map[string]interface{}{
		"capabilities": map[string]interface{}{"alwaysMatch": map[string]interface{}{"platformName": "Android"}},
	})
	require.NoError(t, err)
	require.Equal(t, "abc123", id)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://localhost:4723/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4723", c.baseURL)

	_, err = NewClient("   ")
	require.Error(t, err)
}

func TestCreateSession(t *testing.T) {
	t.Run("w3c envelope", func(t *testing.T) {
		fs, client := newFakeServer(t)
		startSession(t, fs, client)
		assert.Equal(t, "abc123", client.SessionID())
	})

	t.Run("top level sessionId fallback", func(t *testing.T) {
		fs, client := newFakeServer(t)
		fs.responses["POST /session"] = map[string]interface{}{
			"sessionId": "legacy42",
			"value":     map[string]interface{}{},
		}
		id, err := client.CreateSession(context.Background(), map[string]interface{}{"capabilities": map[string]interface{}{}})
		require.NoError(t, err)
		assert.Equal(t, "legacy42", id)
	})

	t.Run("missing session id", func(t *testing.T) {
		fs, client := newFakeServer(t)
		fs.responses["POST /session"] = map[string]interface{}{"value": map[string]interface{}{}}
		_, err := client.CreateSession(context.Background(), map[string]interface{}{"capabilities": map[string]interface{}{}})
		require.ErrorContains(t, err, "no sessionId")
	})

	t.Run("empty payload rejected locally", func(t *testing.T) {
		_, client := newFakeServer(t)
		_, err := client.CreateSession(context.Background(), nil)
		require.Error(t, err)
	})
}

func TestDeleteSession(t *testing.T) {
	fs, client := newFakeServer(t)
	startSession(t, fs, client)
	fs.responses["DELETE /session/abc123"] = map[string]interface{}{"value": nil}

	require.NoError(t, client.DeleteSession(context.Background()))
	assert.Empty(t, client.SessionID())

	// A second delete is a no-op, not an error.
	require.NoError(t, client.DeleteSession(context.Background()))
}

func TestPageSource(t *testing.T) {
	fs, client := newFakeServer(t)
	startSession(t, fs, client)
	fs.responses["GET /session/abc123/source"] = map[string]interface{}{"value": "<hierarchy/>"}

	src, err := client.PageSource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<hierarchy/>", src)
}

func TestPageSourceRequiresSession(t *testing.T) {
	_, client := newFakeServer(t)
	_, err := client.PageSource(context.Background())
	require.ErrorContains(t, err, "no active session")
}

func TestScreenshotPNG(t *testing.T) {
	fs, client := newFakeServer(t)
	startSession(t, fs, client)

	png := []byte{0x89, 'P', 'N', 'G'}
	fs.responses["GET /session/abc123/screenshot"] = map[string]interface{}{
		"value": base64.StdEncoding.EncodeToString(png),
	}
	got, err := client.ScreenshotPNG(context.Background())
	require.NoError(t, err)
	assert.Equal(t, png, got)

	fs.responses["GET /session/abc123/screenshot"] = map[string]interface{}{"value": "not base64!!"}
	_, err = client.ScreenshotPNG(context.Background())
	require.Error(t, err)
}

func TestFindElements(t *testing.T) {
	loc := policy.Locator{Using: "accessibility id", Value: "Like"}

	t.Run("w3c element key", func(t *testing.T) {
		fs, client := newFakeServer(t)
		startSession(t, fs, client)
		fs.responses["POST /session/abc123/elements"] = map[string]interface{}{
			"value": []interface{}{
				map[string]interface{}{"element-6066-11e4-a52e-4f735466cecf": "el-1"},
			},
		}
		elements, err := client.FindElements(context.Background(), loc)
		require.NoError(t, err)
		require.Len(t, elements, 1)
		assert.Equal(t, "el-1", elements[0].ID)

		body := fs.lastBody()
		assert.Equal(t, "accessibility id", body["using"])
		assert.Equal(t, "Like", body["value"])
	})

	t.Run("legacy ELEMENT key", func(t *testing.T) {
		fs, client := newFakeServer(t)
		startSession(t, fs, client)
		fs.responses["POST /session/abc123/elements"] = map[string]interface{}{
			"value": []interface{}{map[string]interface{}{"ELEMENT": "el-legacy"}},
		}
		elements, err := client.FindElements(context.Background(), loc)
		require.NoError(t, err)
		require.Len(t, elements, 1)
		assert.Equal(t, "el-legacy", elements[0].ID)
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		fs, client := newFakeServer(t)
		startSession(t, fs, client)
		fs.responses["POST /session/abc123/elements"] = map[string]interface{}{"value": []interface{}{}}
		elements, err := client.FindElements(context.Background(), loc)
		require.NoError(t, err)
		assert.Empty(t, elements)
	})

	t.Run("invalid locator rejected locally", func(t *testing.T) {
		fs, client := newFakeServer(t)
		startSession(t, fs, client)
		before := len(fs.requests)
		_, err := client.FindElements(context.Background(), policy.Locator{Using: "xpath"})
		require.Error(t, err)
		assert.Len(t, fs.requests, before)
	})
}

func TestSendKeysBody(t *testing.T) {
	fs, client := newFakeServer(t)
	startSession(t, fs, client)
	fs.responses["POST /session/abc123/element/el-1/value"] = map[string]interface{}{"value": nil}

	require.NoError(t, client.SendKeys(context.Background(), ElementRef{ID: "el-1"}, "hi!"))

	body := fs.lastBody()
	assert.Equal(t, "hi!", body["text"])
	assert.Equal(t, []interface{}{"h", "i", "!"}, body["value"])
}

func TestPressKeyCode(t *testing.T) {
	fs, client := newFakeServer(t)
	startSession(t, fs, client)
	fs.responses["POST /session/abc123/appium/device/press_keycode"] = map[string]interface{}{"value": nil}

	require.NoError(t, client.PressKeyCode(context.Background(), 4))
	assert.Equal(t, float64(4), fs.lastBody()["keycode"])
}

func TestPointerActions(t *testing.T) {
	fs, client := newFakeServer(t)
	startSession(t, fs, client)
	fs.responses["POST /session/abc123/actions"] = map[string]interface{}{"value": nil}

	t.Run("tap", func(t *testing.T) {
		require.NoError(t, client.Tap(context.Background(), 540, 1200))

		sequences := fs.lastBody()["actions"].([]interface{})
		require.Len(t, sequences, 1)
		seq := sequences[0].(map[string]interface{})
		assert.Equal(t, "pointer", seq["type"])

		steps := seq["actions"].([]interface{})
		require.Len(t, steps, 4)
		move := steps[0].(map[string]interface{})
		assert.Equal(t, "pointerMove", move["type"])
		assert.Equal(t, float64(540), move["x"])
		assert.Equal(t, float64(1200), move["y"])
	})

	t.Run("swipe rounds sub-millisecond durations up", func(t *testing.T) {
		require.NoError(t, client.Swipe(context.Background(), 540, 1800, 540, 400, 0))

		seq := fs.lastBody()["actions"].([]interface{})[0].(map[string]interface{})
		steps := seq["actions"].([]interface{})
		require.Len(t, steps, 4)
		drag := steps[2].(map[string]interface{})
		assert.Equal(t, "pointerMove", drag["type"])
		assert.Equal(t, float64(1), drag["duration"])
		assert.Equal(t, float64(400), drag["y"])
	})

	t.Run("requires a session", func(t *testing.T) {
		_, fresh := newFakeServer(t)
		require.Error(t, fresh.Tap(context.Background(), 1, 1))
	})
}

func TestWindowRect(t *testing.T) {
	fs, client := newFakeServer(t)
	startSession(t, fs, client)
	fs.responses["GET /session/abc123/window/rect"] = map[string]interface{}{
		"value": map[string]interface{}{"x": 0, "y": 0, "width": 1080, "height": 2400},
	}
	rect, err := client.WindowRect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Rect{Width: 1080, Height: 2400}, rect)
}

func TestErrorDetailExtraction(t *testing.T) {
	fs, client := newFakeServer(t)
	startSession(t, fs, client)
	key := "GET /session/abc123/source"
	fs.responses[key] = map[string]interface{}{
		"value": map[string]interface{}{
			"error":   "invalid session id",
			"message": "session is gone",
		},
	}
	fs.statuses[key] = http.StatusNotFound

	_, err := client.PageSource(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "invalid session id", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "invalid session id")
}

// fakeSession backs the finder helper tests without an HTTP round trip.
type fakeSession struct {
	elements map[string][]ElementRef
	findErr  map[string]error
	clicked  []string
	clickErr error
}

func (f *fakeSession) FindElements(_ context.Context, loc policy.Locator) ([]ElementRef, error) {
	if err := f.findErr[loc.Value]; err != nil {
		return nil, err
	}
	return f.elements[loc.Value], nil
}

func (f *fakeSession) Click(_ context.Context, el ElementRef) error {
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicked = append(f.clicked, el.ID)
	return nil
}

func TestFindFirstAny(t *testing.T) {
	candidates := policy.Candidates{
		{Using: "accessibility id", Value: "Primary"},
		{Using: "accessibility id", Value: "Fallback"},
	}

	t.Run("first candidate wins", func(t *testing.T) {
		s := &fakeSession{elements: map[string][]ElementRef{
			"Primary":  {{ID: "p1"}},
			"Fallback": {{ID: "f1"}},
		}}
		loc, el, err := FindFirstAny(context.Background(), s, candidates)
		require.NoError(t, err)
		assert.Equal(t, "Primary", loc.Value)
		assert.Equal(t, "p1", el.ID)
	})

	t.Run("falls through to later candidates", func(t *testing.T) {
		s := &fakeSession{elements: map[string][]ElementRef{"Fallback": {{ID: "f1"}}}}
		loc, el, err := FindFirstAny(context.Background(), s, candidates)
		require.NoError(t, err)
		assert.Equal(t, "Fallback", loc.Value)
		assert.Equal(t, "f1", el.ID)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		s := &fakeSession{}
		_, _, err := FindFirstAny(context.Background(), s, candidates)
		require.ErrorContains(t, err, "no elements found")
	})

	t.Run("lookup error aborts", func(t *testing.T) {
		s := &fakeSession{findErr: map[string]error{"Primary": errors.New("boom")}}
		_, _, err := FindFirstAny(context.Background(), s, candidates)
		require.ErrorContains(t, err, "boom")
	})
}

func TestHasAny(t *testing.T) {
	candidates := policy.Candidates{
		{Using: "accessibility id", Value: "Primary"},
		{Using: "accessibility id", Value: "Fallback"},
	}

	s := &fakeSession{
		findErr:  map[string]error{"Primary": errors.New("flaky")},
		elements: map[string][]ElementRef{"Fallback": {{ID: "f1"}}},
	}
	assert.True(t, HasAny(context.Background(), s, candidates))
	assert.False(t, HasAny(context.Background(), &fakeSession{}, candidates))
}

func TestClickAny(t *testing.T) {
	candidates := policy.Candidates{{Using: "accessibility id", Value: "Primary"}}

	s := &fakeSession{elements: map[string][]ElementRef{"Primary": {{ID: "p1"}}}}
	loc, err := ClickAny(context.Background(), s, candidates)
	require.NoError(t, err)
	assert.Equal(t, "Primary", loc.Value)
	assert.Equal(t, []string{"p1"}, s.clicked)

	s.clickErr = errors.New("stale element")
	_, err = ClickAny(context.Background(), s, candidates)
	require.ErrorContains(t, err, "stale element")
}
