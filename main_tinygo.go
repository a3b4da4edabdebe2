//go:build tinygo && baremetal

package main

import (
	"sparkrtc/app"
	"sparkrtc/hal"
)

func main() {
	app.Run(hal.New())
}
