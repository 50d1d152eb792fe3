package main

import (
	"log"

	"github.com/asifkhan2513/secure-auth/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
