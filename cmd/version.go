package cmd

import "fmt"

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// runVersion displays version information.
func runVersion() {
	fmt.Printf("ragagent %s\n", AppVersion)
	fmt.Printf("Build:  %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
}
