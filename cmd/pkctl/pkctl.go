package main

import (
	"PowerKeeper/internal/client"
)

func main() {
	client.ParseCmdArgs()
}
