package main

import (
	"github.com/luma/xcpflash/cmd"
)

func main() {
	cmd.Execute()
}
