package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dcmlab/bagv"
	"github.com/dcmlab/bagv/plugins/extension"
	"github.com/dcmlab/bagv/plugins/jhove"
	"github.com/dcmlab/bagv/profile"
	"github.com/dcmlab/bagv/validate"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

var validateOpts = struct {
	profile         string
	payloadProfile  string
	plugin          string
	workers         int
	timeout         time.Duration
	skipUnsupported bool
	strict          bool
	jsonOut         bool
}{}

func validateCmd() cli.Command {
	return cli.Command{
		Name:  "validate",
		Usage: "Validate a bag against profiles and file-format checks",
		Description: `Runs the configured validators against the bag at the given
	path and prints a report.  Checks are selected by the flags given:
	a BagIt profile enables profile validation, a payload profile enables
	structure validation, and a plugin selection enables format validation.
	Payload integrity is always checked.

	Exits 1 when the bag is invalid, 2 when validation could not run.`,
		ArgsUsage: "<bag directory>",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:        "profile, p",
				Usage:       "BagIt profile (path or URL)",
				Destination: &validateOpts.profile,
			},
			cli.StringFlag{
				Name:        "payload-profile",
				Usage:       "payload structure profile (path or URL)",
				Destination: &validateOpts.payloadProfile,
			},
			cli.StringFlag{
				Name:        "format, f",
				Usage:       "format plugin {extension, jhove, none}",
				Value:       "none",
				Destination: &validateOpts.plugin,
			},
			cli.IntFlag{
				Name:        "workers, w",
				Usage:       "concurrent format checks",
				Value:       1,
				Destination: &validateOpts.workers,
			},
			cli.DurationFlag{
				Name:        "timeout",
				Usage:       "per-file timeout for external tools",
				Value:       jhove.DefaultTimeout,
				Destination: &validateOpts.timeout,
			},
			cli.BoolFlag{
				Name:        "skip-unsupported",
				Usage:       "skip files the plugin does not claim instead of checking them",
				Destination: &validateOpts.skipUnsupported,
			},
			cli.BoolFlag{
				Name:        "strict",
				Usage:       "report files in disallowed payload locations as errors",
				Destination: &validateOpts.strict,
			},
			cli.BoolFlag{
				Name:        "json",
				Usage:       "print the report as JSON",
				Destination: &validateOpts.jsonOut,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.NewExitError("expected exactly one bag directory", 2)
			}
			return validateAction(c.Args().First())
		},
	}
}

func validateAction(path string) error {
	composite, err := buildComposite()
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	report, err := composite.Run(context.Background(), path)
	if err != nil {
		return cli.NewExitError(errors.Wrapf(err, "could not validate %s", path).Error(), 2)
	}

	if err := printReport(report); err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	if !report.Valid() {
		return cli.NewExitError("", 1)
	}
	return nil
}

func buildComposite() (*validate.Composite, error) {
	composite := validate.NewComposite()

	if validateOpts.profile != "" {
		p, err := profile.Load(validateOpts.profile)
		if err != nil {
			return nil, err
		}
		pv, err := validate.NewProfile(p)
		if err != nil {
			return nil, err
		}
		composite.Add(pv)
	}

	if validateOpts.payloadProfile != "" {
		pp, err := profile.LoadPayload(validateOpts.payloadProfile)
		if err != nil {
			return nil, err
		}
		sv := validate.NewStructure(pp)
		sv.StrictExtras = validateOpts.strict
		composite.Add(sv)
	}

	composite.Add(validate.NewIntegrity())

	plugin, err := selectPlugin(validateOpts.plugin)
	if err != nil {
		return nil, err
	}
	if plugin != nil {
		fv, err := validate.NewFormat(plugin, profile.FormatPolicy{}, validate.FormatConfig{
			SkipUnsupported: validateOpts.skipUnsupported,
			Workers:         validateOpts.workers,
		})
		if err != nil {
			return nil, err
		}
		composite.Add(fv)
	}

	return composite, nil
}

func selectPlugin(name string) (bagv.Plugin, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "extension":
		return extension.New(), nil
	case "jhove":
		return jhove.New(jhove.Config{
			Command:  mainOpts.jhoveApp,
			ConfFile: mainOpts.jhoveConf,
			Timeout:  validateOpts.timeout,
		})
	}
	return nil, bagv.Configf("unknown format plugin %q", name)
}

func printReport(report *validate.Report) error {
	if validateOpts.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, kind := range report.Order {
		r := report.ByKind[kind]
		fmt.Printf("%s: %s\n", kind, verdict(r.Valid()))
		for _, f := range r.Findings() {
			fmt.Printf("  %-7s %-22s %s  %s\n", f.Severity, f.Code, f.Subject, f.Message)
		}
	}
	fmt.Printf("bag: %s\n", verdict(report.Valid()))
	return nil
}

func verdict(valid bool) string {
	if valid {
		return "valid"
	}
	return "INVALID"
}
