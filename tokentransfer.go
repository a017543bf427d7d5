package lotledger

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
)

// SPLTokenCLI runs the spl-token command-line tool to move non-native tokens.
// It satisfies TokenTransferrer.
type SPLTokenCLI struct {
	// Binary is the executable to run, "spl-token" when empty.
	Binary string
	// RPCURL and Keypair are passed through as --url and --owner flags when
	// set; otherwise the tool's own configuration applies.
	RPCURL  string
	Keypair string
}

var signatureRe = regexp.MustCompile(`Signature: ([1-9A-HJ-NP-Za-km-z]{64,88})`)

// Transfer invokes `spl-token transfer` and returns the landed signature
// parsed from its output. The tool itself waits for confirmation, so a nil
// error means the transfer settled.
func (c *SPLTokenCLI) Transfer(ctx context.Context, token Token, from, to string, amount uint64) (string, error) {
	bin := c.Binary
	if bin == "" {
		bin = "spl-token"
	}
	args := []string{
		"transfer", token.Mint(), token.UIAmount(amount).String(), to,
		"--from", from,
		"--allow-unfunded-recipient",
		"--fund-recipient",
	}
	if c.RPCURL != "" {
		args = append(args, "--url", c.RPCURL)
	}
	if c.Keypair != "" {
		args = append(args, "--owner", c.Keypair)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s transfer failed: %w: %s", bin, err, out.String())
	}
	m := signatureRe.FindSubmatch(out.Bytes())
	if m == nil {
		return "", fmt.Errorf("%s reported success but no signature: %s", bin, out.String())
	}
	return string(m[1]), nil
}
