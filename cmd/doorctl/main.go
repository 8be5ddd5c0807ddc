package main

import "github.com/oshokin/doorwatch/cmd/doorctl/cmd"

func main() {
	cmd.Execute()
}
