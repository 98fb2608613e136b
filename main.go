package main

import (
	// zone data for scheduler.timezone
	_ "time/tzdata"

	"jobtracker-backend/internal/cli"
)

func main() {
	cli.Execute()
}
