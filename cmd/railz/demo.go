package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zoobzio/railz/examples/registration"
)

type scenario struct {
	title string
	input registration.Input
}

var scenarios = []scenario{
	{"A: new user", registration.Input{Name: "alice", Email: "alice@example.com", Age: 25}},
	{"B: every field invalid", registration.Input{Name: "", Email: "invalid", Age: 200}},
	{"C: duplicate email", registration.Input{Name: "bob", Email: "alice@example.com", Age: 30}},
}

func newDemoCmd(load func() (Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the end-to-end registration scenarios",
		Long: `Run three registrations against a fresh store:

  A  a new user completes
  B  an input failing every field check is rejected with all three errors
  C  a second user reusing A's email is rejected by check-unique-email`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			cfg.Seed = nil

			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			for _, sc := range scenarios {
				outcome, err := a.register(cmd.Context(), sc.input)
				if err != nil {
					return fmt.Errorf("scenario %s: %w", sc.title, err)
				}
				printScenario(out, sc, outcome)
			}
			return nil
		},
	}
}

func printScenario(w io.Writer, sc scenario, outcome Outcome) {
	fmt.Fprintf(w, "Scenario %s\n", sc.title)
	fmt.Fprintf(w, "  input: name=%q email=%q age=%d\n", sc.input.Name, sc.input.Email, sc.input.Age)
	fmt.Fprintf(w, "  state: %s\n  ", outcome.State())
	printOutcome(w, outcome)
	fmt.Fprintln(w)
}
