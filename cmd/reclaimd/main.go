// Command reclaimd runs a reclaimer over an in-process heap with its
// background jobs and gRPC admin API, and talks to a running one.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
