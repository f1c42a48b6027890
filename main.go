package main

import "github.com/tonearm/tonearm/cmd"

func main() {
	cmd.Execute()
}
