package core

import (
	"fmt"
	"strings"
)

// Strategy names follow the W3C WebDriver "using" values where one exists.
const (
	StrategyID         = "id"
	StrategyClassName  = "class name"
	StrategyCSS        = "css selector"
	StrategyXPath      = "xpath"
	StrategyButtonText = "button text"
)

// Locator identifies zero or more elements in a rendered page.
// It is a value type; once built it never changes.
type Locator struct {
	Strategy string
	Value    string
}

// ByID matches the element whose id attribute equals id.
func ByID(id string) Locator { return Locator{Strategy: StrategyID, Value: id} }

// ByClassName matches elements carrying class name among their classes.
func ByClassName(name string) Locator { return Locator{Strategy: StrategyClassName, Value: name} }

// ByCSS matches elements by CSS selector.
func ByCSS(selector string) Locator { return Locator{Strategy: StrategyCSS, Value: selector} }

// ByXPath matches elements by XPath expression.
func ByXPath(expr string) Locator { return Locator{Strategy: StrategyXPath, Value: expr} }

// ByButtonText matches <button> elements whose whitespace-normalized text
// is exactly label. "Close" does not match "Close Dialog".
func ByButtonText(label string) Locator {
	return Locator{Strategy: StrategyButtonText, Value: label}
}

// Describe returns a human-readable form used in errors and logs.
func (l Locator) Describe() string {
	return fmt.Sprintf("%s=%q", l.Strategy, l.Value)
}

// IsZero reports whether the locator was never set.
func (l Locator) IsZero() bool {
	return l.Strategy == "" && l.Value == ""
}

// XPath renders the locator as an XPath expression. When relative is true
// the expression is anchored at the context node (".//") so it only
// searches the subtree of the element it is evaluated against.
func (l Locator) XPath(relative bool) string {
	prefix := "//"
	if relative {
		prefix = ".//"
	}

	switch l.Strategy {
	case StrategyID:
		return fmt.Sprintf("%s*[@id=%s]", prefix, xpathLiteral(l.Value))
	case StrategyClassName:
		return fmt.Sprintf("%s*[contains(concat(' ', normalize-space(@class), ' '), %s)]",
			prefix, xpathLiteral(" "+l.Value+" "))
	case StrategyButtonText:
		return fmt.Sprintf("%sbutton[normalize-space(.)=%s]", prefix, xpathLiteral(NormalizeSpace(l.Value)))
	case StrategyXPath:
		if relative && strings.HasPrefix(l.Value, "//") {
			return "." + l.Value
		}
		return l.Value
	default:
		// CSS has no general XPath translation; callers use Value directly.
		return l.Value
	}
}

// CSS renders the locator as a CSS selector. For button-text locators it
// returns the candidate selector ("button"); callers must filter the
// candidates with MatchesText. ok is false for XPath locators.
func (l Locator) CSS() (selector string, ok bool) {
	switch l.Strategy {
	case StrategyID:
		return "[id=" + cssString(l.Value) + "]", true
	case StrategyClassName:
		return "[class~=" + cssString(l.Value) + "]", true
	case StrategyCSS:
		return l.Value, true
	case StrategyButtonText:
		return "button", true
	default:
		return "", false
	}
}

// MatchesText reports whether an element with the given text satisfies the
// locator's text predicate. Locators without one match any text.
func (l Locator) MatchesText(text string) bool {
	if l.Strategy != StrategyButtonText {
		return true
	}
	return NormalizeSpace(text) == NormalizeSpace(l.Value)
}

// NormalizeSpace trims s and collapses internal whitespace runs to a single
// space, like XPath's normalize-space().
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// xpathLiteral quotes s for use inside an XPath expression, falling back to
// concat() when s contains both quote characters.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
