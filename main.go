package main

import "github.com/KaramelBytes/dataglimpse/cmd"

func main() {
	cmd.Execute()
}
