package jsengine

import (
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeHost answers dialogs from a script and records window opens.
type fakeHost struct {
	mu       sync.Mutex
	accept   bool
	input    string
	dialogs  []string
	opened   []string
	elements map[string]*fakeElement
}

func (h *fakeHost) Dialog(kind DialogKind, message, defaultValue string) (bool, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dialogs = append(h.dialogs, string(kind)+":"+message+":"+defaultValue)
	return h.accept, h.input
}

func (h *fakeHost) OpenWindow(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, url)
}

func (h *fakeHost) ElementByID(id string) Element {
	if el, ok := h.elements[id]; ok {
		return el
	}
	return nil
}

type fakeElement struct {
	mu    sync.Mutex
	props map[string]string
}

func (e *fakeElement) Property(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.props[name]
	return v, ok
}

func (e *fakeElement) SetProperty(name, value string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.props[name]; !ok {
		return false
	}
	e.props[name] = value
	return true
}

func newFakeHost() *fakeHost {
	return &fakeHost{elements: map[string]*fakeElement{
		"prompt-demo": {props: map[string]string{"innerHTML": "", "textContent": ""}},
	}}
}

func TestEval(t *testing.T) {
	engine := New(nil)
	defer engine.Close()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"window is global", "window === this", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestPrompt_Accepted(t *testing.T) {
	host := newFakeHost()
	host.accept = true
	host.input = "LambdaTest"
	engine := New(host)
	defer engine.Close()

	err := engine.RunScript(`
		function myPromptFunction() {
			var person = prompt("Please enter your name", "Enter name");
			if (person != null) {
				document.getElementById("prompt-demo").innerHTML = "You have entered '" + person + "' !";
			}
		}
		myPromptFunction();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(host.dialogs) != 1 || host.dialogs[0] != "prompt:Please enter your name:Enter name" {
		t.Errorf("dialogs = %v", host.dialogs)
	}
	got, _ := host.elements["prompt-demo"].Property("innerHTML")
	if got != "You have entered 'LambdaTest' !" {
		t.Errorf("innerHTML = %q", got)
	}
}

func TestPrompt_DismissedReturnsNull(t *testing.T) {
	engine := New(newFakeHost())
	defer engine.Close()

	result, err := engine.Eval(`prompt("name") === null`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != true {
		t.Errorf("expected dismissed prompt to return null")
	}
}

func TestAlertAndConfirm(t *testing.T) {
	host := newFakeHost()
	host.accept = true
	engine := New(host)
	defer engine.Close()

	result, err := engine.Eval(`alert("I am an alert box!"); alert(); confirm("Press a button!")`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != true {
		t.Errorf("confirm() = %v, want true", result)
	}
	want := []string{"alert:I am an alert box!:", "alert::", "confirm:Press a button!:"}
	if strings.Join(host.dialogs, "|") != strings.Join(want, "|") {
		t.Errorf("dialogs = %v, want %v", host.dialogs, want)
	}
}

func TestWindowOpen(t *testing.T) {
	host := newFakeHost()
	engine := New(host)
	defer engine.Close()

	if err := engine.RunScript(`window.open("https://twitter.com/Lambdatesting"); open("/x")`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(host.opened) != 2 || host.opened[0] != "https://twitter.com/Lambdatesting" {
		t.Errorf("opened = %v", host.opened)
	}
}

func TestGetElementById(t *testing.T) {
	engine := New(newFakeHost())
	defer engine.Close()

	result, err := engine.Eval(`[
		document.getElementById("missing") === null,
		"innerHTML" in document.getElementById("prompt-demo"),
		document.getElementById("prompt-demo").nope === undefined
	].join(",")`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "true,true,true" {
		t.Errorf("result = %v", result)
	}
}

func TestConsoleLog(t *testing.T) {
	engine := New(nil)
	defer engine.Close()

	err := engine.RunScript(`
		console.log("test message");
		console.error("error message");
		console.warn("warning message");
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetTimeout(t *testing.T) {
	host := newFakeHost()
	engine := New(host)
	defer engine.Close()

	err := engine.RunScript(`
		setTimeout(function() {
			document.getElementById("prompt-demo").textContent = "later";
		}, 20);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v, _ := host.elements["prompt-demo"].Property("textContent"); v == "later" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("setTimeout callback did not run")
}

func TestClearTimeout(t *testing.T) {
	engine := New(nil)
	defer engine.Close()

	err := engine.RunScript(`
		var flag = false;
		var id = setTimeout(function() { flag = true; }, 30);
		clearTimeout(id);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	result, err := engine.Eval("flag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != false {
		t.Errorf("expected flag to still be false after clearTimeout, got %v", result)
	}
}

func TestSetInterval(t *testing.T) {
	engine := New(nil)
	defer engine.Close()

	err := engine.RunScript(`
		var counter = 0;
		var intervalId = setInterval(function() { counter = counter + 1; }, 10);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	if err := engine.RunScript("clearInterval(intervalId)"); err != nil {
		t.Fatal(err)
	}

	result, err := engine.Eval("counter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counter, ok := result.(int64); !ok || counter < 2 {
		t.Errorf("expected counter >= 2, got %v", result)
	}
}

func TestClose_StopsTimers(t *testing.T) {
	host := newFakeHost()
	engine := New(host)

	if err := engine.RunScript(`setTimeout(function() { alert("late"); }, 20)`); err != nil {
		t.Fatal(err)
	}
	engine.Close()
	engine.Close() // idempotent

	time.Sleep(50 * time.Millisecond)
	host.mu.Lock()
	defer host.mu.Unlock()
	if len(host.dialogs) != 0 {
		t.Errorf("timer fired after Close: %v", host.dialogs)
	}
}

func TestRunScriptError(t *testing.T) {
	engine := New(nil)
	defer engine.Close()

	err := engine.RunScript("undefinedFunction()")
	if err == nil || !strings.Contains(err.Error(), "JS runtime error") {
		t.Errorf("expected runtime error, got %v", err)
	}
}
