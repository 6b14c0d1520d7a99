package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

const (
	ServiceName      = "identity-context-service"
	ServiceNamespace = "stayware"
)

func Run() error {

	app := &cli.App{
		Name:     ServiceName,
		Usage:    "Stayware Identity & Session Context agent",
		Flags:    nil, // []cli.Flag{}
		Version:  Version(),
		Commands: commands,
	}

	return app.Run(os.Args)
}

var commands []*cli.Command

func Register(cmds ...*cli.Command) {
	commands = append(commands, cmds...)
}
