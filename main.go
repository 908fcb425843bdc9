package main

import (
	"github.com/tessellate-ai/contextd/internal/adapters/driving/cli"
)

func main() {
	cli.Execute()
}
