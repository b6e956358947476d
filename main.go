package main

import (
	"log"

	"github.com/michelelt/job-matcher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
