package main

import (
	"PowerKeeper/internal/daemon"
)

func main() {
	daemon.ParseCmdArgs()
}
