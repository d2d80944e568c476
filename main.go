package main

import "github.com/kozaktomas/site-photos/cmd"

func main() {
	cmd.Execute()
}
