package core

import "testing"

func TestLocator_XPath(t *testing.T) {
	tests := []struct {
		name     string
		loc      Locator
		relative bool
		want     string
	}{
		{"id absolute", ByID("message-text"), false, "//*[@id='message-text']"},
		{"id relative", ByID("recipient-name"), true, ".//*[@id='recipient-name']"},
		{
			"class name",
			ByClassName("modal-dialog"),
			false,
			"//*[contains(concat(' ', normalize-space(@class), ' '), ' modal-dialog ')]",
		},
		{"button text", ByButtonText("Send message"), true, ".//button[normalize-space(.)='Send message']"},
		{"xpath made relative", ByXPath("//div[@class='modal-body']"), true, ".//div[@class='modal-body']"},
		{"xpath already relative", ByXPath(".//div[@class='modal-body']"), true, ".//div[@class='modal-body']"},
		{"xpath absolute kept", ByXPath("//div[@class='modal-body']"), false, "//div[@class='modal-body']"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.XPath(tt.relative); got != tt.want {
				t.Errorf("XPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocator_XPathQuoting(t *testing.T) {
	if got := ByButtonText(`Don't`).XPath(false); got != `//button[normalize-space(.)="Don't"]` {
		t.Errorf("XPath() = %q", got)
	}

	got := ByButtonText(`say "don't"`).XPath(false)
	want := `//button[normalize-space(.)=concat('say "don', "'", 't"')]`
	if got != want {
		t.Errorf("XPath() = %q, want %q", got, want)
	}
}

func TestLocator_Describe(t *testing.T) {
	if got := ByClassName("modal-dialog").Describe(); got != `class name="modal-dialog"` {
		t.Errorf("Describe() = %q", got)
	}
}

func TestLocator_IsZero(t *testing.T) {
	if !(Locator{}).IsZero() {
		t.Error("zero Locator should report IsZero")
	}
	if ByID("x").IsZero() {
		t.Error("ByID should not be zero")
	}
}

func TestLocator_CSS(t *testing.T) {
	tests := []struct {
		loc    Locator
		want   string
		wantOK bool
	}{
		{ByID("recipient-name"), `[id="recipient-name"]`, true},
		{ByClassName("modal-dialog"), `[class~="modal-dialog"]`, true},
		{ByCSS(`div[class="modal-body"]`), `div[class="modal-body"]`, true},
		{ByButtonText("Close"), "button", true},
		{ByID(`a"b`), `[id="a\"b"]`, true},
		{ByXPath("//div"), "", false},
	}

	for _, tt := range tests {
		got, ok := tt.loc.CSS()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s.CSS() = %q, %v; want %q, %v", tt.loc.Describe(), got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLocator_MatchesText(t *testing.T) {
	closeBtn := ByButtonText("Close")
	if !closeBtn.MatchesText("  Close\n") {
		t.Error("surrounding whitespace should not prevent an exact match")
	}
	if closeBtn.MatchesText("Close Dialog") {
		t.Error(`"Close" must not match "Close Dialog"`)
	}
	if ByButtonText("Send message").MatchesText("Send") {
		t.Error(`"Send message" must not match "Send"`)
	}
	if !ByID("x").MatchesText("anything") {
		t.Error("non-text locators match any text")
	}
}
