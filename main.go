package main

import "github.com/chatlens-ai/chatlens/cmd"

func main() {
	cmd.Execute()
}
