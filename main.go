// Command stlcpilot walks a project through the software testing lifecycle,
// drafting each stage with a language model and advancing only on approval.
package main

import "stlcpilot/internal/cli"

func main() {
	cli.Execute()
}
