package main

import (
	"log"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
