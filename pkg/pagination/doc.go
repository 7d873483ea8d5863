// Package pagination provides cursor-following collection and parallel
// id-batched fetching for Helix endpoints.
//
// Helix list endpoints return a pagination cursor in each response; the
// Pager follows it until the data array runs dry. Id-filtered endpoints
// accept at most helix.MaxBatchIDs ids per request; the BatchFetcher
// partitions larger id sets into chunks and issues one concurrent request
// per chunk.
//
// Example usage:
//
//	pager := pagination.NewPager(client)
//	follows, err := pager.CollectAll(ctx, "users/follows?from_id=123&first=100")
//
//	fetcher := pagination.NewBatchFetcher(client, helix.MaxBatchIDs)
//	streams, err := fetcher.FetchByID(ctx, "streams", "user_id", ids)
//
// Both components are all-or-nothing: a failure on any page or chunk fails
// the whole call, and already-accumulated records are discarded. Partial
// results would let callers persist an incomplete entity set.
package pagination
