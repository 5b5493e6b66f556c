package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landrecords/portal/common/draw"
	"github.com/landrecords/portal/common/integrity"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSealAndVerifyDoc(t *testing.T) {
	content := []byte(`{"referenceNo":"AWARD-2025-001"}`)
	path := writeFile(t, "award.json", content)

	out, err := run(t, "seal", path)
	require.NoError(t, err)
	assert.Equal(t, integrity.Seal(content)+"  "+path+"\n", out)

	out, err = run(t, "verify-doc", path, integrity.Seal(content))
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	out, err = run(t, "verify-doc", path, integrity.Seal([]byte("other")))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "MISMATCH")

	_, err = run(t, "verify-doc", path, "abc")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, "seal", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSealJSON(t *testing.T) {
	path := writeFile(t, "doc.bin", []byte("abc"))

	out, err := run(t, "--format", "json", "seal", path)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   SealResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, integrity.Seal([]byte("abc")), resp.Data.Hash)
	assert.EqualValues(t, 3, resp.Data.SizeBytes)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "--format", "yaml", "seal", "x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerifyDraw(t *testing.T) {
	pool := []string{"a-1", "a-2", "a-3", "a-4", "a-5"}
	engine := draw.NewEngine(draw.WithEntropy(bytes.NewReader(bytes.Repeat([]byte{0x5a}, draw.SeedBytes))))
	audit, err := engine.Conduct("plots-2025", pool, 2)
	require.NoError(t, err)

	data, err := json.Marshal(audit)
	require.NoError(t, err)
	auditPath := writeFile(t, "audit.json", data)
	poolPath := writeFile(t, "pool.txt", []byte(strings.Join(pool, "\n")+"\n"))

	out, err := run(t, "verify-draw", auditPath, "--pool", poolPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "hashes:  ok")
	assert.Contains(t, out, "replay:  ok")

	// a pool in another order does not replay
	reordered := writeFile(t, "pool.txt", []byte("a-5\na-4\na-3\na-2\na-1\n"))
	out, err = run(t, "--format", "json", "verify-draw", auditPath, "--pool", reordered)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"status": "failed"`)
	assert.Contains(t, out, `"verified": true`)

	audit.Results[0].Selected = !audit.Results[0].Selected
	data, err = json.Marshal(audit)
	require.NoError(t, err)
	tampered := writeFile(t, "tampered.json", data)
	out, err = run(t, "verify-draw", tampered)
	require.Error(t, err)
	assert.Contains(t, out, "hashes:  FAILED")
}

func TestNextStates(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "declared edges", args: []string{"award", "draft"}, want: "award/draft -> fin_review\n"},
		{name: "terminal", args: []string{"award", "closed"}, want: "award/closed is terminal\n"},
		{name: "sec11 first publish", args: []string{"land_notification", "published", "--type", "sec11"}, want: "land_notification/published -> objection_window_open\n"},
		{name: "sec11 after objections", args: []string{"land_notification", "published", "--type", "sec11", "--entered", "draft,objection_resolved"}, want: "land_notification/published -> closed\n"},
		{name: "sec19", args: []string{"land_notification", "published", "--type", "sec19"}, want: "land_notification/published -> closed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append([]string{"next-states"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	_, err := run(t, "next-states", "mortgage", "draft")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	_, err = run(t, "next-states", "award", "published")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
