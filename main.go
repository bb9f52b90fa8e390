package main

import "github.com/emrgen/notecache/cmd"

func main() {
	cmd.Execute()
}
