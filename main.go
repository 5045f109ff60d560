package main

import "github.com/jjenkins/civicwatch/cmd"

func main() {
	cmd.Execute()
}
