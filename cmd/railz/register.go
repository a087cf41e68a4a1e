package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zoobzio/railz"
	"github.com/zoobzio/railz/examples/registration"
)

// Outcome is the result of one registration.
type Outcome = railz.Outcome[*registration.Error, registration.User]

// errRejected is returned when a registration ends Rejected so the process
// exits non-zero.
var errRejected = errors.New("registration rejected")

func newRegisterCmd(load func() (Config, error)) *cobra.Command {
	var in registration.Input

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a single user",
		Long: `Register a single user and print the outcome.

The configured seed users are registered first, so a seed can be used to
try a duplicate email.`,
		Example: `  railz register --name alice --email alice@example.com --age 25`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			outcome, err := a.register(cmd.Context(), in)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), outcome)
			if outcome.IsRejected() {
				return errRejected
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "user name")
	cmd.Flags().StringVar(&in.Email, "email", "", "user email")
	cmd.Flags().IntVar(&in.Age, "age", 0, "user age")
	return cmd
}

func printOutcome(w io.Writer, outcome Outcome) {
	if user, ok := outcome.Output(); ok {
		fmt.Fprintf(w, "completed: id=%s name=%s email=%s age=%d\n", user.ID, user.Name, user.Email, user.Age)
		return
	}
	errs := outcome.Errors()
	switch outcome.Phase() {
	case railz.PhaseProcessing:
		fmt.Fprintf(w, "rejected at %s with %d error(s):\n", outcome.FailedStep(), len(errs))
	default:
		fmt.Fprintf(w, "rejected by validation with %d error(s):\n", len(errs))
	}
	for _, e := range errs {
		fmt.Fprintf(w, "  - %s\n", e.Error())
	}
}
