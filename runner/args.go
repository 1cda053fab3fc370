package runner

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// ValidateRuntimeArgs checks that every runtime arg is a well-formed flag.
// A flag starts with '-', has at least one non-dash character after the
// leading dashes and contains no whitespace.
func ValidateRuntimeArgs(args []string) error {
	for i, arg := range args {
		if err := validateRuntimeArg(arg); err != nil {
			return fmt.Errorf("runtime arg %d: %w", i, err)
		}
	}
	return nil
}

func validateRuntimeArg(arg string) error {
	if arg == "" {
		return fmt.Errorf("empty flag")
	}
	if !strings.HasPrefix(arg, "-") {
		return fmt.Errorf("%q is not a flag, flags must start with '-'", arg)
	}
	if strings.TrimLeft(arg, "-") == "" {
		return fmt.Errorf("%q has no flag name", arg)
	}
	if strings.IndexFunc(arg, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%q contains whitespace", arg)
	}
	return nil
}

// buildArgs assembles the runner argv: base args, runtime args in order, then selectors
func buildArgs(base, runtimeArgs, selectors []string) []string {
	args := make([]string, 0, len(base)+len(runtimeArgs)+len(selectors))
	args = append(args, base...)
	args = append(args, runtimeArgs...)
	args = append(args, selectors...)
	return slices.Clip(args)
}
