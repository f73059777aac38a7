// Package preflight provides readiness checks for the filesystem paths and
// optional services ytarchiver depends on.
//
// These checks run in two contexts:
//   - The daemon runs them once at startup and logs every failure as a warning.
//   - The CLI "ytarchiver config validate" command prints each result.
package preflight
