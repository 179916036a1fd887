package main

import (
	"rivalscope/cmd/cmd"
	"rivalscope/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	cmd.Execute()
}
