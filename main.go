package main

import "github.com/agentic-research/blocktree/cmd"

func main() {
	cmd.Execute()
}
