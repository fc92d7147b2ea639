package main

import "github.com/eargollo/dupfind/cmd/dupfind/cmd"

func main() {
	cmd.Execute()
}
