package main

import (
	"github.com/sustena-platforms/julctl/cmd/julctl"
)

func main() {
	julctl.Execute()
}
