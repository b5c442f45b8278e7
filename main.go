package main

import "github.com/heropets/server/cli"

func main() {
	cli.Execute()
}
