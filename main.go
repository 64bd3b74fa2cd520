package main

import (
	"github.com/putto11262002/chatter-client/app"
)

func main() {
	a := app.New(nil, nil)
	a.Start()
}
