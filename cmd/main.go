package main

import "github.com/evaproject/eva/pkg/cmd"

func main() {
	cmd.Execute()
}
