// Command loadgen drives traffic at a running observable-service backend.
//
// Usage:
//
//	loadgen run --target http://localhost:6000 --path /api/data --requests 200 --concurrency 10
//	loadgen run --path /api/data --path /load-test --retries 2 --format json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "loadgen",
		Short:        "Generate HTTP load against the backend",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
