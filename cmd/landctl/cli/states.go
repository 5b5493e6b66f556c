package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/statemachine"
)

// NextStatesResult is the output of next-states
type NextStatesResult struct {
	Kind       models.Kind    `json:"kind"`
	State      models.State   `json:"state"`
	Terminal   bool           `json:"terminal"`
	NextStates []models.State `json:"next_states"`
}

// NewNextStatesCommand lists the legal targets of a state. Guards are
// evaluated against --type and --entered when either is given.
func NewNextStatesCommand(opts *RootOptions) *cobra.Command {
	var (
		entityType string
		entered    []string
	)

	cmd := &cobra.Command{
		Use:   "next-states <kind> <state>",
		Short: "List the states reachable from a workflow state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := statemachine.Default()
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown kind", err)
			}
			state := models.State(args[1])
			if !reg.HasState(kind, state) {
				return NewExitError(ExitCommandError, fmt.Sprintf("%s has no state %q", kind, state))
			}

			var next []models.State
			if entityType == "" && len(entered) == 0 {
				next = reg.ValidNextStates(kind, state)
			} else {
				next, err = reg.ValidNextStatesFor(syntheticEntity(kind, state, entityType, entered))
				if err != nil {
					return WrapExitError(ExitCommandError, "cannot evaluate guards", err)
				}
			}

			res := NextStatesResult{Kind: kind, State: state, Terminal: reg.IsTerminal(kind, state), NextStates: next}
			out := &formatter{format: opts.Format, w: cmd.OutOrStdout()}
			return out.emit(true, res, func(w io.Writer) {
				if res.Terminal {
					fmt.Fprintf(w, "%s/%s is terminal\n", kind, state)
					return
				}
				names := make([]string, len(next))
				for i, s := range next {
					names[i] = string(s)
				}
				fmt.Fprintf(w, "%s/%s -> %s\n", kind, state, strings.Join(names, ", "))
			})
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "entity type evaluated by guards, e.g. sec11")
	cmd.Flags().StringSliceVar(&entered, "entered", nil, "states already in the entity's history")
	return cmd
}

// syntheticEntity builds an entity that entered each history state one
// second apart before reaching state.
func syntheticEntity(kind models.Kind, state models.State, entityType string, entered []string) *models.Entity {
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	history := make(map[models.State]time.Time, len(entered)+1)
	for i, s := range entered {
		history[models.State(s)] = base.Add(time.Duration(i) * time.Second)
	}
	history[state] = base.Add(time.Duration(len(entered)) * time.Second)
	return &models.Entity{Kind: kind, Status: state, Type: entityType, StateEnteredAt: history}
}
