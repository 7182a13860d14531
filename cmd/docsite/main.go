package main

import "github.com/vietddude/docsite/internal/cli"

func main() {
	cli.Execute()
}
