package main

import "github.com/finfou/tmuxp/cmd"

func main() {
	cmd.Execute()
}
