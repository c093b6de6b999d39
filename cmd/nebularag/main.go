package main

import "nebularag/internal/cli"

func main() {
	cli.Execute()
}
