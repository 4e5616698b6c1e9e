package main

import "github.com/adamgarcia4/goLearning/meff/cmd"

func main() {
	cmd.Execute()
}
