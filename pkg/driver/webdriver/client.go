// Package webdriver implements core.Session against a W3C WebDriver server:
// a local chromedriver or a remote grid such as LambdaTest.
package webdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/logger"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// W3C "using" strategies.
const (
	usingCSS   = "css selector"
	usingXPath = "xpath"
)

// Client handles HTTP communication with a WebDriver server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
}

// NewClient creates a new WebDriver client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Minute, // grids can be slow to allocate a browser
		},
	}
}

// SessionID returns the current session id, empty when not connected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(ctx context.Context, capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	resp, err := c.post(ctx, "/session", body)
	if err != nil {
		return core.ErrSessionNotCreated.WithCause(err)
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return core.ErrSessionNotCreated.WithMessage("invalid session response")
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		return core.ErrSessionNotCreated.WithMessage("no session ID in response")
	}
	logger.Info("webdriver: session %s created on %s", c.sessionID, redactURL(c.serverURL))
	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(ctx, c.sessionPath())
	c.sessionID = ""
	return err
}

// Element Operations

// FindElement finds a single element in the document.
func (c *Client) FindElement(ctx context.Context, using, value string) (string, error) {
	return c.findOne(ctx, c.sessionPath()+"/element", using, value)
}

// FindElements finds all matching elements in the document.
func (c *Client) FindElements(ctx context.Context, using, value string) ([]string, error) {
	return c.findAll(ctx, c.sessionPath()+"/elements", using, value)
}

// FindElementFrom finds a single descendant of elementID.
func (c *Client) FindElementFrom(ctx context.Context, elementID, using, value string) (string, error) {
	return c.findOne(ctx, c.elementPath(elementID)+"/element", using, value)
}

// FindElementsFrom finds all matching descendants of elementID.
func (c *Client) FindElementsFrom(ctx context.Context, elementID, using, value string) ([]string, error) {
	return c.findAll(ctx, c.elementPath(elementID)+"/elements", using, value)
}

func (c *Client) findOne(ctx context.Context, path, using, value string) (string, error) {
	resp, err := c.post(ctx, path, map[string]interface{}{
		"using": using,
		"value": value,
	})
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", core.ErrElementNotFound
	}
	id := extractElementID(elemValue)
	if id == "" {
		return "", core.ErrElementNotFound
	}
	return id, nil
}

func (c *Client) findAll(ctx context.Context, path, using, value string) ([]string, error) {
	resp, err := c.post(ctx, path, map[string]interface{}{
		"using": using,
		"value": value,
	})
	if err != nil {
		return nil, err
	}

	values, ok := resp["value"].([]interface{})
	if !ok {
		return nil, nil
	}

	var ids []string
	for _, v := range values {
		if elem, ok := v.(map[string]interface{}); ok {
			if id := extractElementID(elem); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// ClickElement clicks an element.
func (c *Client) ClickElement(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/click", map[string]interface{}{})
	return err
}

// ClearElement clears an element's value.
func (c *Client) ClearElement(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/clear", map[string]interface{}{})
	return err
}

// SendKeysToElement types text into an element.
func (c *Client) SendKeysToElement(ctx context.Context, elementID, text string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/value", map[string]interface{}{
		"text": text,
	})
	return err
}

// GetElementText returns an element's rendered text.
func (c *Client) GetElementText(ctx context.Context, elementID string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// GetElementProperty returns an element's DOM property as a string.
func (c *Client) GetElementProperty(ctx context.Context, elementID, name string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/property/"+name)
	if err != nil {
		return "", err
	}
	switch v := resp["value"].(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(ctx context.Context, elementID string) (bool, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// Navigation

// Navigate loads url in the current window.
func (c *Client) Navigate(ctx context.Context, url string) error {
	_, err := c.post(ctx, c.sessionPath()+"/url", map[string]interface{}{
		"url": url,
	})
	return err
}

// MaximizeWindow maximizes the current window.
func (c *Client) MaximizeWindow(ctx context.Context) error {
	_, err := c.post(ctx, c.sessionPath()+"/window/maximize", map[string]interface{}{})
	return err
}

// Alerts

// GetAlertText returns the text of the open alert.
func (c *Client) GetAlertText(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/alert/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// SendAlertText types into an open prompt.
func (c *Client) SendAlertText(ctx context.Context, text string) error {
	_, err := c.post(ctx, c.sessionPath()+"/alert/text", map[string]interface{}{
		"text": text,
	})
	return err
}

// AcceptAlert accepts the open alert.
func (c *Client) AcceptAlert(ctx context.Context) error {
	_, err := c.post(ctx, c.sessionPath()+"/alert/accept", map[string]interface{}{})
	return err
}

// DismissAlert dismisses the open alert.
func (c *Client) DismissAlert(ctx context.Context) error {
	_, err := c.post(ctx, c.sessionPath()+"/alert/dismiss", map[string]interface{}{})
	return err
}

// Windows

// GetWindowHandle returns the current window handle.
func (c *Client) GetWindowHandle(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/window")
	if err != nil {
		return "", err
	}
	handle, _ := resp["value"].(string)
	return handle, nil
}

// GetWindowHandles returns all window handles of the session.
func (c *Client) GetWindowHandles(ctx context.Context) ([]string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/window/handles")
	if err != nil {
		return nil, err
	}
	values, _ := resp["value"].([]interface{})
	handles := make([]string, 0, len(values))
	for _, v := range values {
		if h, ok := v.(string); ok {
			handles = append(handles, h)
		}
	}
	return handles, nil
}

// SwitchToWindow makes handle the current window.
func (c *Client) SwitchToWindow(ctx context.Context, handle string) error {
	_, err := c.post(ctx, c.sessionPath()+"/window", map[string]interface{}{
		"handle": handle,
	})
	return err
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source.
func (c *Client) Source(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// SetImplicitWait sets the implicit wait timeout. The session adapter
// polls explicitly, so it sets this to zero.
func (c *Client) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	_, err := c.post(ctx, c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodDelete, path, nil)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, core.ErrServerUnreachable.WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.ErrServerUnreachable.WithCause(err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errCode, ok := errValue["error"].(string); ok {
			errMsg, _ := errValue["message"].(string)
			return result, classify(errCode, errMsg)
		}
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}

// redactURL drops user info (grid credentials) before logging.
func redactURL(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return u
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	return scheme + "://" + rest
}
