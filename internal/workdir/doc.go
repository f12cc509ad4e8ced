// Package workdir manages the shared work directory that holds one
// subdirectory of intermediates per input file.
//
// A run takes an exclusive flock on the root for its whole lifetime, so
// pruning from the CLI never races a run that is still writing speech
// batches. Subdirectories are only left behind by failed or interrupted
// files (successful files clean up after themselves unless intermediates
// are kept) and are reclaimed by age.
package workdir
