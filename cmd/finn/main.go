package main

import (
	"github.com/finn-lang/finn/pkg/cmd"
)

func main() {
	cmd.Execute()
}
