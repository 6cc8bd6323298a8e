package main

import "github.com/chardev/chardev/internal/cli"

func main() {
	cli.Execute()
}
