package main

import (
	"os"

	"onboarding/internal/app/server"
)

func main() {
	if err := server.Run(); err != nil {
		os.Exit(1)
	}
}
