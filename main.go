package main

import (
	"fmt"

	"github.com/stayware/identity-context-service/cmd"

	_ "github.com/stayware/identity-context-service/cmd/agent"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
