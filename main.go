// Package main is entrypoint for the application
package main

import (
	"pubsub/cmd"
)

func main() {
	cmd.Run()
}
