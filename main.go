package main

import (
	"sqlite-init/cmd"

	_ "modernc.org/sqlite"
)

func main() {
	cmd.Execute()
}
