package main

import "github.com/origindb/origindb/internal/cli"

func main() {
	cli.Execute()
}
