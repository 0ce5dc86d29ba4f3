package main

import (
	"fmt"
	"path/filepath"

	"github.com/dcmlab/bagv"
	"github.com/dcmlab/bagv/bag"
	"github.com/dcmlab/bagv/plugins/extension"
	"github.com/dcmlab/bagv/plugins/jhove"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

var identifyOpts = struct {
	plugin string
}{}

func identifyCmd() cli.Command {
	return cli.Command{
		Name:      "identify",
		Usage:     "Identify the format of each payload file in a bag",
		ArgsUsage: "<bag directory>",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:        "format, f",
				Usage:       "format plugin {extension, jhove}",
				Value:       "extension",
				Destination: &identifyOpts.plugin,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.NewExitError("expected exactly one bag directory", 2)
			}
			return identifyAction(c.Args().First())
		},
	}
}

func identifyAction(path string) error {
	plugin, err := identifyPlugin()
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	b, err := bag.Open(path)
	if err != nil {
		return errors.Wrapf(err, "could not open bag at %s", path)
	}

	files, err := b.PayloadFiles()
	if err != nil {
		return errors.Wrap(err, "could not list payload")
	}

	for _, f := range files {
		id, err := plugin.Identify(filepath.Join(b.Root, filepath.FromSlash(f)))
		if err != nil {
			fmt.Printf("%s\t!\t%s\n", f, err)
			continue
		}
		format := id.Format
		if !id.Known() {
			format = "(unknown)"
		}
		fmt.Printf("%s\t%s\t%s\n", f, format, id.Certainty)
	}
	return nil
}

func identifyPlugin() (bagv.Plugin, error) {
	switch identifyOpts.plugin {
	case "extension":
		return extension.New(), nil
	case "jhove":
		return jhove.New(jhove.Config{Command: mainOpts.jhoveApp, ConfFile: mainOpts.jhoveConf})
	}
	return nil, bagv.Configf("unknown format plugin %q", identifyOpts.plugin)
}
