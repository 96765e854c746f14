// Package jsengine runs the inline scripts of an offline page: <script>
// blocks, onclick handlers and the timers they start. Native dialogs,
// window.open and document.getElementById are delegated to a Host.
package jsengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/modal-runner/pkg/logger"
)

// DialogKind is the kind of native dialog a script opened.
type DialogKind string

// Dialog kinds.
const (
	Alert   DialogKind = "alert"
	Confirm DialogKind = "confirm"
	Prompt  DialogKind = "prompt"
)

// Host is the page a script runs against.
type Host interface {
	// Dialog shows a native dialog and blocks until it is closed. input is
	// the prompt text when accepted.
	Dialog(kind DialogKind, message, defaultValue string) (accepted bool, input string)

	// OpenWindow opens url in a new window.
	OpenWindow(url string)

	// ElementByID returns the element with the given id, or nil.
	ElementByID(id string) Element
}

// Element is a DOM element exposed to scripts. Only string properties are
// supported (textContent, innerHTML, value, className, ...).
type Element interface {
	Property(name string) (string, bool)
	SetProperty(name, value string) bool
}

// Engine wraps a goja runtime with the browser globals page scripts use.
// Scripts run one at a time; a script blocked in a dialog holds the engine.
type Engine struct {
	runtime *goja.Runtime
	host    Host
	timers  *timerRegistry
	mu      sync.Mutex
}

// timerRegistry manages setTimeout/setInterval timers
type timerRegistry struct {
	timers    map[int]*time.Timer
	tickers   map[int]*time.Ticker
	nextID    int
	mu        sync.Mutex
	stopChan  chan struct{}
	closeOnce sync.Once
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{
		timers:   make(map[int]*time.Timer),
		tickers:  make(map[int]*time.Ticker),
		nextID:   1,
		stopChan: make(chan struct{}),
	}
}

// New creates an engine bound to host. A nil host dismisses every dialog
// and has no elements.
func New(host Host) *Engine {
	if host == nil {
		host = detached{}
	}
	e := &Engine{
		runtime: goja.New(),
		host:    host,
		timers:  newTimerRegistry(),
	}

	e.setupBuiltins()
	return e
}

func (e *Engine) setupBuiltins() {
	e.setupConsole()
	e.setupTimers()
	e.setupDialogs()

	global := e.runtime.GlobalObject()
	global.Set("window", global)
	global.Set("open", func(call goja.FunctionCall) goja.Value {
		e.host.OpenWindow(call.Argument(0).String())
		return goja.Null()
	})

	document := e.runtime.NewObject()
	document.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		el := e.host.ElementByID(call.Argument(0).String())
		if el == nil {
			return goja.Null()
		}
		return e.runtime.NewDynamicObject(&elementObject{rt: e.runtime, el: el})
	})
	global.Set("document", document)
}

// setupConsole routes console.log, console.warn and console.error to the logger.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(log func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.Export()
			}
			log("js: %s", fmt.Sprint(args...))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(logger.Debug))
	console.Set("error", makeConsoleFunc(logger.Error))
	console.Set("warn", makeConsoleFunc(logger.Warn))
	e.runtime.Set("console", console)
}

func (e *Engine) setupDialogs() {
	e.runtime.Set("alert", func(call goja.FunctionCall) goja.Value {
		e.host.Dialog(Alert, message(call.Argument(0)), "")
		return goja.Undefined()
	})
	e.runtime.Set("confirm", func(call goja.FunctionCall) goja.Value {
		ok, _ := e.host.Dialog(Confirm, message(call.Argument(0)), "")
		return e.runtime.ToValue(ok)
	})
	e.runtime.Set("prompt", func(call goja.FunctionCall) goja.Value {
		ok, input := e.host.Dialog(Prompt, message(call.Argument(0)), message(call.Argument(1)))
		if !ok {
			return goja.Null()
		}
		return e.runtime.ToValue(input)
	})
}

// message converts a dialog argument the way browsers do: a missing
// argument is the empty string.
func message(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

// setupTimers adds setTimeout, setInterval, clearTimeout, clearInterval
func (e *Engine) setupTimers() {
	e.runtime.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		callback, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(e.runtime.NewTypeError("first argument must be a function"))
		}
		delay := call.Argument(1).ToInteger()

		e.timers.mu.Lock()
		id := e.timers.nextID
		e.timers.nextID++

		timer := time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
			e.mu.Lock()
			defer e.mu.Unlock()

			if _, err := callback(goja.Undefined()); err != nil {
				logger.Warn("js: setTimeout callback: %v", err)
			}

			e.timers.mu.Lock()
			delete(e.timers.timers, id)
			e.timers.mu.Unlock()
		})

		e.timers.timers[id] = timer
		e.timers.mu.Unlock()

		return e.runtime.ToValue(id)
	})

	e.runtime.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		id := int(call.Argument(0).ToInteger())

		e.timers.mu.Lock()
		if timer, ok := e.timers.timers[id]; ok {
			timer.Stop()
			delete(e.timers.timers, id)
		}
		e.timers.mu.Unlock()

		return goja.Undefined()
	})

	e.runtime.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		callback, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(e.runtime.NewTypeError("first argument must be a function"))
		}
		interval := call.Argument(1).ToInteger()
		if interval <= 0 {
			interval = 1
		}

		e.timers.mu.Lock()
		id := e.timers.nextID
		e.timers.nextID++

		ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
		e.timers.tickers[id] = ticker
		e.timers.mu.Unlock()

		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-e.timers.stopChan:
					return
				case <-ticker.C:
					e.mu.Lock()
					if _, err := callback(goja.Undefined()); err != nil {
						logger.Warn("js: setInterval callback: %v", err)
					}
					e.mu.Unlock()
				}
			}
		}()

		return e.runtime.ToValue(id)
	})

	e.runtime.Set("clearInterval", func(call goja.FunctionCall) goja.Value {
		id := int(call.Argument(0).ToInteger())

		e.timers.mu.Lock()
		if ticker, ok := e.timers.tickers[id]; ok {
			ticker.Stop()
			delete(e.timers.tickers, id)
		}
		e.timers.mu.Unlock()

		return goja.Undefined()
	})
}

// Eval evaluates a JavaScript expression and returns the exported result.
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return result.Export(), nil
}

// RunScript runs a script or handler body.
func (e *Engine) RunScript(script string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.runtime.RunString(script); err != nil {
		return fmt.Errorf("JS runtime error: %w", err)
	}
	return nil
}

// Close stops all timers and interrupts any running script.
// Safe to call multiple times.
func (e *Engine) Close() {
	e.timers.closeOnce.Do(func() {
		e.timers.mu.Lock()
		defer e.timers.mu.Unlock()

		for _, timer := range e.timers.timers {
			timer.Stop()
		}
		e.timers.timers = make(map[int]*time.Timer)

		for _, ticker := range e.timers.tickers {
			ticker.Stop()
		}
		e.timers.tickers = make(map[int]*time.Ticker)

		close(e.timers.stopChan)
		e.runtime.Interrupt("engine closed")
	})
}

// elementObject exposes an Element as a JS object with string properties.
type elementObject struct {
	rt *goja.Runtime
	el Element
}

func (o *elementObject) Get(key string) goja.Value {
	if v, ok := o.el.Property(key); ok {
		return o.rt.ToValue(v)
	}
	return nil
}

func (o *elementObject) Set(key string, val goja.Value) bool {
	return o.el.SetProperty(key, message(val))
}

func (o *elementObject) Has(key string) bool {
	_, ok := o.el.Property(key)
	return ok
}

func (o *elementObject) Delete(key string) bool { return false }

func (o *elementObject) Keys() []string { return nil }

type detached struct{}

func (detached) Dialog(DialogKind, string, string) (bool, string) { return false, "" }
func (detached) OpenWindow(string)                                 {}
func (detached) ElementByID(string) Element                        { return nil }
