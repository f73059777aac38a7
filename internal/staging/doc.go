// Package staging sweeps abandoned temporary download artifacts out of the
// videos directory at daemon startup.
package staging
