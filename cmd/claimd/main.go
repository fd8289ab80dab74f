package main

import (
	"log"

	"claimdrop/services/claimd"
)

func main() {
	if err := claimd.Main(); err != nil {
		log.Fatalf("claimd: %v", err)
	}
}
