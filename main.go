package main

import "github.com/takeiteasy/sokol-hpp/tools/cmd"

func main() {
	cmd.Execute()
}
