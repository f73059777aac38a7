// Package library persists one VideoRecord per completed job in a bbolt
// database and serves the files they point at.
//
// Record is put-if-absent, so finalizing the same job twice leaves exactly
// one record.
package library
