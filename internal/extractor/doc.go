// Package extractor drives the yt-dlp command line tool.
//
// The tool is treated as an opaque subprocess: Probe reads its JSON metadata,
// Download streams its merged stdout/stderr line by line, and every child runs
// in its own process group so TerminateGroup can stop it together with any
// helpers it spawned (ffmpeg). Progress parsing, band mapping and artifact
// discovery live here too because they depend on the tool's output
// conventions.
package extractor
