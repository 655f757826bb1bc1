package main

import (
	"github.com/pipeship/pipeship/cmd/pipeship/cmd"
)

func main() {
	cmd.Execute()
}
