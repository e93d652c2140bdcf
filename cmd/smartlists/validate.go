package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"smartlists/internal/definitions"
	"smartlists/internal/smartlist"
)

type validateResult struct {
	Valid    bool                  `json:"valid"`
	Lists    []string              `json:"lists"`
	Problems []definitions.Problem `json:"problems,omitempty"`
}

// errInvalidDefinitions makes the command exit non-zero after the report
// has been printed.
var errInvalidDefinitions = errors.New("invalid definitions")

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file-or-dir...]",
		Short: "Validate list definitions and report every problem",
		Long: `Validate list definition files. Without arguments the LISTS_DIR directory
is checked. Directories are scanned the same way the service loads them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				dir := os.Getenv("LISTS_DIR")
				if dir == "" {
					dir = "/config/lists"
				}
				args = []string{dir}
			}

			var result validateResult
			for _, arg := range args {
				if err := validatePath(cmd, arg, &result); err != nil {
					return err
				}
			}
			result.Valid = len(result.Problems) == 0
			if result.Lists == nil {
				result.Lists = []string{}
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				if err := writeJSONOutput(out, result); err != nil {
					return err
				}
			} else {
				for _, id := range result.Lists {
					fmt.Fprintf(out, "ok      %s\n", id)
				}
				for _, p := range result.Problems {
					fmt.Fprintf(out, "invalid %s\n", p.File)
					if len(p.Fields) == 0 {
						fmt.Fprintf(out, "        %s\n", p.Error)
					}
					for _, f := range p.Fields {
						fmt.Fprintf(out, "        %s\n", f.Error())
					}
				}
			}

			if !result.Valid {
				return errInvalidDefinitions
			}
			return nil
		},
	}
}

func validatePath(cmd *cobra.Command, path string, result *validateResult) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.IsDir() {
		store := definitions.NewStore(path)
		lists, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, l := range lists {
			result.Lists = append(result.Lists, l.ID)
		}
		result.Problems = append(result.Problems, store.Problems()...)
		return nil
	}

	l, err := definitions.LoadFile(path)
	if err != nil {
		p := definitions.Problem{File: path, Error: err.Error()}
		for _, ve := range smartlist.ValidationErrors(err) {
			if ve.Field != "" {
				p.Fields = append(p.Fields, ve)
			}
		}
		result.Problems = append(result.Problems, p)
		return nil
	}
	result.Lists = append(result.Lists, l.ID)
	return nil
}
