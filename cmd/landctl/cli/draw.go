package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/landrecords/portal/common/draw"
	"github.com/landrecords/portal/common/models"
)

// VerifyDrawResult is the output of verify-draw
type VerifyDrawResult struct {
	DrawID   string `json:"draw_id"`
	SchemeID string `json:"scheme_id"`
	Verified bool   `json:"verified"`
	Replayed bool   `json:"replayed"`
	Reason   string `json:"reason,omitempty"`
}

// NewVerifyDrawCommand re-checks an exported draw audit
func NewVerifyDrawCommand(opts *RootOptions) *cobra.Command {
	var poolFile string

	cmd := &cobra.Command{
		Use:   "verify-draw <audit.json>",
		Short: "Recompute the hashes of a draw audit and optionally replay it",
		Long: `Recompute every result hash and the aggregate hash of an exported draw
audit. With --pool, the shuffle is replayed from the recorded seed over the
listed application ids (one per line, in pool order).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audit, err := readAudit(args[0])
			if err != nil {
				return err
			}
			res := VerifyDrawResult{DrawID: audit.DrawID.String(), SchemeID: audit.SchemeID}

			if err := draw.Check(audit); err != nil {
				res.Reason = err.Error()
			} else {
				res.Verified = true
			}
			if res.Verified && poolFile != "" {
				pool, err := readPool(poolFile)
				if err != nil {
					return err
				}
				if err := draw.Replay(audit, pool); err != nil {
					res.Reason = err.Error()
				} else {
					res.Replayed = true
				}
			}

			ok := res.Verified && (poolFile == "" || res.Replayed)
			out := &formatter{format: opts.Format, w: cmd.OutOrStdout()}
			if err := out.emit(ok, res, func(w io.Writer) {
				fmt.Fprintf(w, "draw %s (scheme %s)\n", res.DrawID, res.SchemeID)
				fmt.Fprintf(w, "  hashes:  %s\n", verdict(res.Verified))
				if poolFile != "" {
					fmt.Fprintf(w, "  replay:  %s\n", verdict(res.Replayed))
				}
				if res.Reason != "" {
					fmt.Fprintf(w, "  reason:  %s\n", res.Reason)
				}
			}); err != nil {
				return err
			}
			if !ok {
				return NewExitError(ExitFailure, "draw audit failed verification")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&poolFile, "pool", "", "file with the pool's application ids, one per line")
	return cmd
}

func verdict(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAILED"
}

func readAudit(path string) (*models.DrawAudit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot read audit", err)
	}
	var audit models.DrawAudit
	if err := json.Unmarshal(data, &audit); err != nil {
		return nil, WrapExitError(ExitCommandError, "audit is not valid JSON", err)
	}
	return &audit, nil
}

func readPool(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot open pool", err)
	}
	defer f.Close()

	var pool []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			pool = append(pool, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot read pool", err)
	}
	return pool, nil
}
