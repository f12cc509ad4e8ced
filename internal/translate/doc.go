// Package translate turns a subtitle timeline into its translation without
// changing the number, order or timing of entries.
//
// A timeline is cut into sections at long pauses and each section into
// batches of consecutive lines. Batches run concurrently behind a counting
// gate and write their results into fixed index ranges, so completion order
// never affects the output. Each batch first tries a tag protocol that wraps
// line i in <Li>...</Li> markers; when the reply cannot be mapped back onto
// the lines, the whole batch is translated as one block and cut by each
// line's share of the source length. The fallback always yields exactly one
// text per line.
package translate
