package main

import "composebot/cmd"

func main() {
	cmd.Execute()
}
