package main

import "github.com/itsuki0/term-assistant/cmd"

func main() {
	cmd.Execute()
}
