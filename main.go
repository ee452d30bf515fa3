package main

import "power_dashboard/commands"

func main() {
	commands.Execute()
}
