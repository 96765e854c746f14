// Package scenario holds the end-to-end browser scenarios modal-runner
// executes: Bootstrap modal dialogs, native alerts and popup windows.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/devicelab-dev/modal-runner/pkg/core"
)

// Public demo pages the scenarios were written against.
const (
	DefaultModalDemo    = "https://www.lambdatest.com/selenium-playground/bootstrap-modal-demo"
	DefaultComplexModal = "https://getbootstrap.com/docs/4.0/components/modal/"
	DefaultAlertDemo    = "https://www.lambdatest.com/selenium-playground/javascript-alert-box-demo"
	DefaultPopupDemo    = "https://www.lambdatest.com/selenium-playground/window-popup-modal-demo"
)

// Pages holds the URL of every page a scenario visits.
type Pages struct {
	ModalDemo    string `yaml:"modalDemo" json:"modalDemo"`
	ComplexModal string `yaml:"complexModal" json:"complexModal"`
	AlertDemo    string `yaml:"alertDemo" json:"alertDemo"`
	PopupDemo    string `yaml:"popupDemo" json:"popupDemo"`
}

// DefaultPages returns the public demo pages.
func DefaultPages() Pages {
	return Pages{
		ModalDemo:    DefaultModalDemo,
		ComplexModal: DefaultComplexModal,
		AlertDemo:    DefaultAlertDemo,
		PopupDemo:    DefaultPopupDemo,
	}
}

// WithDefaults fills every empty URL with its public default.
func (p Pages) WithDefaults() Pages {
	d := DefaultPages()
	if p.ModalDemo == "" {
		p.ModalDemo = d.ModalDemo
	}
	if p.ComplexModal == "" {
		p.ComplexModal = d.ComplexModal
	}
	if p.AlertDemo == "" {
		p.AlertDemo = d.AlertDemo
	}
	if p.PopupDemo == "" {
		p.PopupDemo = d.PopupDemo
	}
	return p
}

// Env is what a scenario needs besides the session.
type Env struct {
	Pages   Pages
	Timeout time.Duration // wait budget for dialogs, alerts and windows
}

func (e Env) timeout() time.Duration {
	if e.Timeout <= 0 {
		return core.DefaultWaitTimeout
	}
	return e.Timeout
}

// Func runs one scenario against a session it does not own.
type Func func(ctx context.Context, s core.Session, env Env) error

// Scenario is a named, runnable browser check.
type Scenario struct {
	Name        string
	Description string
	Run         Func
}

// Catalogue is an ordered set of scenarios addressable by name.
type Catalogue struct {
	scenarios []Scenario
	index     map[string]int
}

// NewCatalogue builds a catalogue. Later duplicates replace earlier ones.
func NewCatalogue(scenarios ...Scenario) *Catalogue {
	c := &Catalogue{index: make(map[string]int)}
	for _, s := range scenarios {
		if i, ok := c.index[s.Name]; ok {
			c.scenarios[i] = s
			continue
		}
		c.index[s.Name] = len(c.scenarios)
		c.scenarios = append(c.scenarios, s)
	}
	return c
}

// Default returns the built-in scenarios.
func Default() *Catalogue {
	return NewCatalogue(
		Scenario{Name: "modal-dialog", Description: "single Bootstrap modal: body text and Save Changes", Run: ModalDialog},
		Scenario{Name: "multiple-modals", Description: "modal launched from another modal; each read through its own container", Run: MultipleModals},
		Scenario{Name: "complex-dialog", Description: "form dialog: recipient, message, Send message, Close", Run: ComplexDialog},
		Scenario{Name: "prompt-alert", Description: "native prompt: read, answer and accept", Run: PromptAlert},
		Scenario{Name: "popup-window", Description: "link opening a second window; switch to it", Run: PopupWindow},
	)
}

// All returns every scenario in registration order.
func (c *Catalogue) All() []Scenario {
	return append([]Scenario(nil), c.scenarios...)
}

// Names returns the scenario names in registration order.
func (c *Catalogue) Names() []string {
	names := make([]string, len(c.scenarios))
	for i, s := range c.scenarios {
		names[i] = s.Name
	}
	return names
}

// Get looks up a scenario by name.
func (c *Catalogue) Get(name string) (Scenario, bool) {
	i, ok := c.index[name]
	if !ok {
		return Scenario{}, false
	}
	return c.scenarios[i], true
}

// Select returns the named scenarios in the order given, or every scenario
// when names is empty. Unknown names are a configuration error.
func (c *Catalogue) Select(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return c.All(), nil
	}

	var unknown []string
	selected := make([]Scenario, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		s, ok := c.Get(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, s)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, core.ErrInvalidConfig.
			WithMessage(fmt.Sprintf("unknown scenario(s) %v; available: %v", unknown, c.Names()))
	}
	return selected, nil
}
