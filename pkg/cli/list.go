package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/modal-runner/pkg/scenario"
)

var listCommand = &cli.Command{
	Name:   "list",
	Usage:  "List the available scenarios",
	Action: runList,
}

func runList(c *cli.Context) error {
	catalogue := scenario.Default()
	for _, sc := range catalogue.All() {
		fmt.Fprintf(stdout, "  %s%-18s%s %s\n", color(colorBold), sc.Name, color(colorReset), sc.Description)
	}
	return nil
}
