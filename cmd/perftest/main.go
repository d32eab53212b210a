package main

import "perftest/cmd"

func main() {
	cmd.Execute()
}
