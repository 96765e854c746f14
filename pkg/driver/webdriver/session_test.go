package webdriver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devicelab-dev/modal-runner/pkg/core"
)

func newTestSession(t *testing.T, handler http.HandlerFunc) *Session {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL)
	client.sessionID = "s"
	return NewSession(client, WithPollInterval(5*time.Millisecond))
}

func TestOpen_DisablesImplicitWait(t *testing.T) {
	var implicit float64 = -1
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session":
			writeJSON(w, map[string]interface{}{"value": map[string]interface{}{"sessionId": "s"}})
		case "/session/s/timeouts":
			var body map[string]float64
			_ = json.NewDecoder(r.Body).Decode(&body)
			implicit = body["implicit"]
			writeJSON(w, map[string]interface{}{"value": nil})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	s, err := Open(context.Background(), server.URL, Capabilities(CapabilityOptions{}))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.Client().SessionID() != "s" {
		t.Errorf("Expected session 's', got %q", s.Client().SessionID())
	}
	if implicit != 0 {
		t.Errorf("Expected implicit wait 0, got %v", implicit)
	}
}

func TestSession_WaitVisiblePolls(t *testing.T) {
	var polls int32
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/s/elements":
			if atomic.AddInt32(&polls, 1) < 3 {
				writeJSON(w, map[string]interface{}{"value": []interface{}{}})
				return
			}
			writeJSON(w, map[string]interface{}{"value": []interface{}{elementRef("hidden"), elementRef("shown")}})
		case "/session/s/element/hidden/displayed":
			writeJSON(w, map[string]interface{}{"value": false})
		case "/session/s/element/shown/displayed":
			writeJSON(w, map[string]interface{}{"value": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	el, err := s.WaitVisible(context.Background(), core.ByClassName("modal-dialog"), time.Second)
	if err != nil {
		t.Fatalf("WaitVisible failed: %v", err)
	}
	if el.(*element).id != "shown" {
		t.Errorf("Expected the displayed element, got %q", el.(*element).id)
	}
	if atomic.LoadInt32(&polls) != 3 {
		t.Errorf("Expected 3 polls, got %d", polls)
	}
}

func TestSession_WaitVisibleTimeout(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/s/elements":
			writeJSON(w, map[string]interface{}{"value": []interface{}{elementRef("e")}})
		case "/session/s/element/e/displayed":
			writeJSON(w, map[string]interface{}{"value": false})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	_, err := s.WaitVisible(context.Background(), core.ByClassName("modal-dialog"), 20*time.Millisecond)
	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("Expected timeout, got %v", err)
	}
}

func TestSession_WaitVisibleSkipsStaleElements(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/s/elements":
			writeJSON(w, map[string]interface{}{"value": []interface{}{elementRef("stale"), elementRef("ok")}})
		case "/session/s/element/stale/displayed":
			writeW3CError(w, http.StatusNotFound, "stale element reference", "gone")
		case "/session/s/element/ok/displayed":
			writeJSON(w, map[string]interface{}{"value": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	el, err := s.WaitVisible(context.Background(), core.ByID("myModal"), time.Second)
	if err != nil {
		t.Fatalf("WaitVisible failed: %v", err)
	}
	if el.(*element).id != "ok" {
		t.Errorf("Expected 'ok', got %q", el.(*element).id)
	}
}

func TestElement_FindUsesRelativeXPathForButtons(t *testing.T) {
	var using, value string
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/s/element/body/element" {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			using, value = body["using"], body["value"]
			writeJSON(w, map[string]interface{}{"value": elementRef("btn")})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	body := &element{session: s, id: "body"}
	if _, err := body.Find(context.Background(), core.ByButtonText("Send message")); err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if using != "xpath" || value != ".//button[normalize-space(.)='Send message']" {
		t.Errorf("Unexpected query: using=%q value=%q", using, value)
	}
}

func TestElement_FindNotFoundNamesLocator(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		writeW3CError(w, http.StatusNotFound, "no such element", "Unable to locate element")
	})

	body := &element{session: s, id: "body"}
	_, err := body.Find(context.Background(), core.ByID("recipient-name"))
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("Expected element_not_found, got %v", err)
	}
	var ee *core.ExecutionError
	if !errors.As(err, &ee) || ee.Details["locator"] != `id="recipient-name"` {
		t.Errorf("Expected locator detail, got %v", err)
	}
}

func TestElement_ClickIntercepted(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		writeW3CError(w, http.StatusBadRequest, "element click intercepted",
			"Element <button> is not clickable at point (10, 10). Other element would receive the click: <div class=\"modal-backdrop\">")
	})

	err := (&element{session: s, id: "btn"}).Click(context.Background())
	if !errors.Is(err, core.ErrClickIntercepted) {
		t.Fatalf("Expected click_intercepted, got %v", err)
	}
}

func TestElement_ClearThenType(t *testing.T) {
	var calls []string
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		if r.URL.Path == "/session/s/element/in/value" {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["text"] != "Anton" {
				t.Errorf("Expected text 'Anton', got %q", body["text"])
			}
		}
		writeJSON(w, map[string]interface{}{"value": nil})
	})

	el := &element{session: s, id: "in"}
	ctx := context.Background()
	if err := el.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := el.SendKeys(ctx, "Anton"); err != nil {
		t.Fatalf("SendKeys failed: %v", err)
	}
	if len(calls) != 2 || calls[0] != "/session/s/element/in/clear" || calls[1] != "/session/s/element/in/value" {
		t.Errorf("Unexpected calls: %v", calls)
	}
}

func TestSession_WaitAlert(t *testing.T) {
	var polls int32
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/s/alert/text" {
			if atomic.AddInt32(&polls, 1) < 2 {
				writeW3CError(w, http.StatusNotFound, "no such alert", "no such alert")
				return
			}
			writeJSON(w, map[string]interface{}{"value": "Please enter your name"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	ctx := context.Background()
	if err := s.WaitAlert(ctx, time.Second); err != nil {
		t.Fatalf("WaitAlert failed: %v", err)
	}
	text, err := s.AlertText(ctx)
	if err != nil || text != "Please enter your name" {
		t.Errorf("AlertText() = %q, %v", text, err)
	}
}

func TestSession_WaitAlertTimeout(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		writeW3CError(w, http.StatusNotFound, "no such alert", "no such alert")
	})

	err := s.WaitAlert(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("Expected timeout, got %v", err)
	}
}

func TestSession_ImplementsCapabilities(t *testing.T) {
	var s interface{} = &Session{}
	if _, ok := s.(core.Navigator); !ok {
		t.Error("Session should implement core.Navigator")
	}
	if _, ok := s.(core.AlertHandler); !ok {
		t.Error("Session should implement core.AlertHandler")
	}
	if _, ok := s.(core.WindowSwitcher); !ok {
		t.Error("Session should implement core.WindowSwitcher")
	}
	if _, ok := s.(core.Maximizer); !ok {
		t.Error("Session should implement core.Maximizer")
	}
	if _, ok := s.(core.Closer); !ok {
		t.Error("Session should implement core.Closer")
	}
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities(CapabilityOptions{Headless: true})
	if caps["browserName"] != "chrome" {
		t.Errorf("Expected default browser chrome, got %v", caps["browserName"])
	}
	if _, ok := caps["goog:chromeOptions"]; !ok {
		t.Error("Expected goog:chromeOptions for headless chrome")
	}
	if _, ok := caps["LT:Options"]; ok {
		t.Error("LT:Options should only be set for grid runs")
	}

	caps = Capabilities(CapabilityOptions{
		BrowserName:    "Chrome",
		BrowserVersion: "latest",
		PlatformName:   "Windows 10",
		Username:       "user",
		AccessKey:      "key",
		Build:          "Selenium 4",
		Name:           "modal-dialog",
	})
	lt, ok := caps["LT:Options"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected LT:Options")
	}
	if lt["user"] != "user" || lt["accessKey"] != "key" || lt["platformName"] != "Windows 10" {
		t.Errorf("Unexpected LT:Options: %v", lt)
	}
	if lt["build"] != "Selenium 4" || lt["name"] != "modal-dialog" || lt["seCdp"] != true {
		t.Errorf("Unexpected LT:Options: %v", lt)
	}
	if caps["browserVersion"] != "latest" {
		t.Errorf("Expected browserVersion latest, got %v", caps["browserVersion"])
	}
	if _, ok := caps["platformName"]; ok {
		t.Error("platformName belongs inside LT:Options on the grid")
	}
}

func TestSession_FindAll(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/s/elements" {
			writeJSON(w, map[string]interface{}{"value": []interface{}{elementRef("a"), elementRef("b"), elementRef("c")}})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	found, err := s.FindAll(context.Background(), core.ByButtonText("Click Me"))
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(found) != 3 || found[2].(*element).id != "c" {
		t.Errorf("Unexpected elements: %v", found)
	}
}
