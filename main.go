package main

import "github.com/jfmyers9/tagalong/cmd"

func main() {
	cmd.Execute()
}
