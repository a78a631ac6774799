// Package common holds process-wide values shared by the gateway binaries.
package common

// PackageName is the service identifier used for metrics namespacing.
const PackageName = "multisig_gateway"

// Version is set at build time via -ldflags.
var Version = "dev"
