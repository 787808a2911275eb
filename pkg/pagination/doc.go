// Package pagination aggregates paginated Mattermost endpoints into a single
// normalized result.
//
// Mattermost does not report a total page count, so completeness is only
// learnable from page sizes: a full page may be followed by more, an
// undersized or empty page ends the walk. The collector therefore fetches
// pages strictly sequentially and merges as it goes.
//
// Example usage:
//
//	fetch := func(ctx context.Context, page, perPage int) (pagination.Page[Channel], error) {
//		return listChannelPage(ctx, teamID, page, perPage)
//	}
//	result, err := pagination.Collect(ctx, fetch, pagination.Options{Resource: "channels"})
//
// The collector:
//   - Requests pages 0, 1, 2, ... with a fixed page size
//   - Appends each page's order and unions its items into the aggregate
//   - Stops at an item cap, an empty page, or an undersized page
//   - Honors context cancellation between pages
//
// A fetch error aborts the run: partial aggregates are never returned.
package pagination
