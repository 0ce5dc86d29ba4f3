package main

import (
	"log"
	"os"

	"github.com/urfave/cli"
)

var mainOpts = struct {
	jhoveApp  string
	jhoveConf string
}{}

func main() {
	app := cli.NewApp()
	app.Name = "bagv"
	app.Usage = "BagIt bag validation utilities"
	app.EnableBashCompletion = true
	app.Commands = []cli.Command{
		validateCmd(),
		identifyCmd(),
		pluginsCmd(),
	}
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "jhove-app",
			Usage:       "jhove invocation command (e.g. 'java -jar jhove.jar')",
			EnvVar:      "JHOVE_APP",
			Destination: &mainOpts.jhoveApp,
		},
		cli.StringFlag{
			Name:        "jhove-conf",
			Usage:       "jhove configuration file",
			EnvVar:      "JHOVE_APP_CONF",
			Destination: &mainOpts.jhoveConf,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
