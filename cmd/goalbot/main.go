package main

import "github.com/kamir/goalbot/cmd/goalbot/cmd"

func main() {
	cmd.Execute()
}
