package main

import (
	"fmt"
	"strings"

	"github.com/dcmlab/bagv"
	"github.com/dcmlab/bagv/plugins/extension"
	"github.com/dcmlab/bagv/plugins/jhove"
	"github.com/urfave/cli"
)

func pluginsCmd() cli.Command {
	return cli.Command{
		Name:  "plugins",
		Usage: "Describe the bundled format plugins",
		Action: func(c *cli.Context) error {
			describe(extension.New().Describe())
			describe((&jhove.Plugin{}).Describe())
			return nil
		},
	}
}

func describe(d bagv.Descriptor) {
	fmt.Printf("%s: %s\n", d.Name, d.Summary)
	fmt.Printf("  %s\n", d.Description)
	fmt.Printf("  default formats: %s\n\n", strings.Join(d.DefaultFormats, ", "))
}
