// Package logs reads the daemon log file for `ytarchiver daemon logs`.
//
// Last returns the final N lines together with the byte offset they end at;
// Follow then polls from that offset and hands each appended line to a
// callback until the context is cancelled. A file that shrinks below the
// saved offset is treated as truncated and re-read from the start.
package logs
