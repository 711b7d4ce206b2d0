package main

import (
	"TandemFM/cmd"
)

func main() {
	cmd.Execute()
}
