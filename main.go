package main

import "github.com/jfmyers9/boxd/cmd"

func main() {
	cmd.Execute()
}
