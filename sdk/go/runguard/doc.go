// Package runguard embeds an execution-safety layer into Go programs that
// run commands on behalf of partially trusted callers. It validates every
// externally supplied value, refuses executables absent from the
// allow-list, and appends each decision to a hash-chained audit log.
//
// Usage:
//
//	rg, err := runguard.New(runguard.WithAllowlist("~/.runguard/allowlist.yaml"))
//	trap := rg.InstallTrap()
//	defer trap.Finish()
//	defer trap.Recover()
//
//	result, err := rg.Run(ctx, runguard.Command{
//	    Name: "rsync",
//	    Args: []string{"-a", src, dst},
//	})
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/runguard/runguard/sdk/go/runguard.
package runguard
