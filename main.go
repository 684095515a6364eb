package main

import "dupscan/cmd"

func main() {
	cmd.Execute()
}
