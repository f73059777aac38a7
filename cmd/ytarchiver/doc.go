// Command ytarchiver is the CLI and daemon entry point for the yt-dlp job
// queue.
//
// `ytarchiver daemon run` hosts the workflow manager and HTTP API in the
// foreground; `daemon start` launches it detached. Every other command talks
// to the daemon over HTTP and, when the daemon is down, falls back to the
// local queue database so jobs can still be queued and inspected.
package main
