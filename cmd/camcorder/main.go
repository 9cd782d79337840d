package main

import "github.com/bryanchriswhite/camcorder/cmd/camcorder/commands"

func main() {
	commands.Execute()
}
