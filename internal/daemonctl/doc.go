// Package daemonctl launches, locates and stops the background daemon on
// behalf of the CLI.
//
// The daemon is started as a detached `ytarchiver daemon run` process and
// discovered through its HTTP health endpoint. Stopping relies on the pid
// file written at startup: SIGTERM first, SIGKILL after a grace period.
package daemonctl
