package main

import (
	"os"

	"github.com/bizdir/bizdir/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
