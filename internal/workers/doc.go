/*
Package workers sizes and runs bounded worker pools.

Counts are derived from GOMAXPROCS rather than runtime.NumCPU, so a container
with a CPU limit of 2 on a 64-core node gets 2 CPU-bound workers, not 64:

	n := workers.ForIO(16) // 2 per CPU, at most 16

The INDEX_WORKERS environment variable overrides the computed count (still
capped by the limit):

	env:
	- name: INDEX_WORKERS
	  value: "4"

Each runs a function over an index range with bounded concurrency. The indexer
uses it to fingerprint the members of a batch in parallel while keeping results
in candidate order:

	results := make([]Record, len(batch))
	workers.Each(len(batch), n, func(i int) {
		results[i] = build(batch[i])
	})
*/
package workers
