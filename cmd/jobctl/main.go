package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/cuongbtq/job-dispatcher/cmd/jobctl/commands"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
