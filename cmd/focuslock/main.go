package main

import "github.com/greenforestpath/focuslock/cmd/focuslock/cmd"

func main() {
	cmd.Execute()
}
