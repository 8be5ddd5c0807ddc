package main

import "github.com/oshokin/doorwatch/cmd/doorwatch-server/cmd"

func main() {
	cmd.Execute()
}
