// Command shipctl builds, releases and manages the Kubernetes-deployed
// components of this project.
package main

import (
	"fmt"
	"os"

	"github.com/nimbleci/shipctl/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
