package main

import "github.com/devicelab-dev/modal-runner/pkg/cli"

func main() {
	cli.Execute()
}
