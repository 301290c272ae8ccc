package main

import "github.com/fakeyudi/replaycap/cmd"

func main() {
	cmd.Execute()
}
