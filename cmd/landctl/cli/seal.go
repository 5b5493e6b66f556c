package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/landrecords/portal/common/integrity"
)

// SealResult is the output of seal
type SealResult struct {
	File      string `json:"file"`
	Hash      string `json:"hash"`
	SizeBytes int64  `json:"size_bytes"`
}

// VerifyDocResult is the output of verify-doc
type VerifyDocResult struct {
	File     string `json:"file"`
	Expected string `json:"expected"`
	Match    bool   `json:"match"`
}

// NewSealCommand prints the SHA-256 content hash of a file
func NewSealCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seal <file>",
		Short: "Compute the content hash of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot open document", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot stat document", err)
			}
			hash, err := integrity.SealReader(f)
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot read document", err)
			}

			res := SealResult{File: args[0], Hash: hash, SizeBytes: info.Size()}
			out := &formatter{format: opts.Format, w: cmd.OutOrStdout()}
			return out.emit(true, res, func(w io.Writer) {
				fmt.Fprintf(w, "%s  %s\n", res.Hash, res.File)
			})
		},
	}
}

// NewVerifyDocCommand checks a file against an expected hash
func NewVerifyDocCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-doc <file> <hash>",
		Short: "Check a document against its sealed hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, expected := args[0], args[1]
			if !integrity.ValidHash(expected) {
				return NewExitError(ExitCommandError, fmt.Sprintf("%q is not a SHA-256 hex digest", expected))
			}
			if _, err := os.Stat(path); err != nil {
				return WrapExitError(ExitCommandError, "cannot open document", err)
			}
			ok, err := integrity.Verify(path, expected)
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot read document", err)
			}

			res := VerifyDocResult{File: path, Expected: expected, Match: ok}
			out := &formatter{format: opts.Format, w: cmd.OutOrStdout()}
			if err := out.emit(ok, res, func(w io.Writer) {
				if ok {
					fmt.Fprintf(w, "%-8s %s\n", "OK", path)
				} else {
					fmt.Fprintf(w, "%-8s %s\n", "MISMATCH", path)
				}
			}); err != nil {
				return err
			}
			if !ok {
				return NewExitError(ExitFailure, "document does not match its hash")
			}
			return nil
		},
	}
}
