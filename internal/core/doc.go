// Package core is the service layer of the catalog desk.
//
// It composes the catalog engine, the persisted selection and column
// preferences, the bulk action coordinator, the deal API client, the URL
// extractor and the review template store behind one [Service], so the web
// layer never talks to a collaborator directly.
//
// # Derivation
//
// Product and deal lists are derived on every request: the full collection
// is loaded, then filtered and sorted by a [catalog.FilterSpec]. Select-all
// and invert act on what the current filter shows, not on the whole
// catalog.
//
// # Error Handling
//
// Technical errors are mapped to operator-facing messages with [MapError].
// Each category has a code prefix for support reference:
//
//   - STO: storage (local cache quota, schema version, database)
//   - API: deal API
//   - EXT: URL extractor
//   - SEL: selection and export columns
//   - BLK: bulk actions and spreadsheet import
//   - VAL: validation
//   - ERR000: anything else
//
// A failed deal fetch is not an error: [Service.Deals] returns an empty list
// with the mapped message attached.
package core
