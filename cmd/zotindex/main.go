package main

import "zotindex/internal/cli"

func main() {
	cli.Execute()
}
