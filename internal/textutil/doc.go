// Package textutil provides string helpers for titles and filenames.
//
// SanitizeTitle turns arbitrary extractor titles into bounded ASCII strings
// that are safe to show and to embed in filenames. SanitizeFileName is the
// looser variant used for names a user typed.
package textutil
