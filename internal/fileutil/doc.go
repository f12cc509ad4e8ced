// Package fileutil resolves input file arguments and moves finished
// artifacts into place.
package fileutil
