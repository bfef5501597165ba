package main

import (
	"github.com/gofiber/fiber/v2/log"
	"github.com/kindred-ai/kindred-api/app"
)

func main() {
	// setup and run app
	err := app.SetupAndRunServer()
	if err != nil {
		log.Trace(err)
		panic(err)
	}
}
