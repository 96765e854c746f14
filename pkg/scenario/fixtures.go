package scenario

import (
	"embed"
	"fmt"
)

//go:embed fixtures/*.html
var fixtureFS embed.FS

// Fixtures returns offline copies of the demo pages keyed by the URLs in
// pages, for the html backend. Each copy keeps the public page's dialog
// markup (container, body region, footer, button labels) and drops the rest.
func Fixtures(pages Pages) (map[string]string, error) {
	pages = pages.WithDefaults()
	files := map[string]string{
		pages.ModalDemo:    "bootstrap-modal-demo.html",
		pages.ComplexModal: "modal.html",
		pages.AlertDemo:    "javascript-alert-box-demo.html",
		pages.PopupDemo:    "window-popup-modal-demo.html",
	}

	fixtures := make(map[string]string, len(files))
	for url, name := range files {
		data, err := fixtureFS.ReadFile("fixtures/" + name)
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", name, err)
		}
		fixtures[url] = string(data)
	}
	return fixtures, nil
}
