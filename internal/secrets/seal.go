package secrets

import (
	"context"
	"fmt"

	"github.com/nimbleci/shipctl/internal/process"
)

// KubeSeal invokes kubeseal over content via stdin, sealing it against
// the given certificate, and returns the captured stdout.
func KubeSeal(ctx context.Context, runner *process.Runner, content []byte, cert string) ([]byte, error) {
	res, err := runner.Run(ctx, process.Options{
		Argv:  []string{"kubeseal", "--cert", cert, "-o", "yaml"},
		Stdin: content,
		Check: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sealing secret: %w", err)
	}
	return res.Stdout, nil
}

// KubeUnseal invokes kubeseal's recovery mode over content via stdin
// using the cluster's private master key, and returns the captured
// stdout (the plaintext Secret document).
func KubeUnseal(ctx context.Context, runner *process.Runner, content []byte, masterKey, cert string) ([]byte, error) {
	res, err := runner.Run(ctx, process.Options{
		Argv: []string{
			"kubeseal",
			"--recovery-unseal",
			"--recovery-private-key", masterKey,
			"--cert", cert,
			"-o", "yaml",
		},
		Stdin: content,
		Check: true,
	})
	if err != nil {
		return nil, fmt.Errorf("unsealing secret: %w", err)
	}
	return res.Stdout, nil
}
