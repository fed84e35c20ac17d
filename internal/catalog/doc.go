// Package catalog holds the product record and the collection view-model.
//
// The view-model is a single generic engine: callers describe how to read a
// record through an [Accessor] and get back a filtered, sorted [View]. The
// same engine serves products loaded from the database, imported from a
// spreadsheet, or fetched from the deal API.
//
// # Derivation Order
//
// [Engine.Derive] applies its stages in a fixed order:
//
//  1. Search term (case-insensitive substring of title or subtitle)
//  2. Category flag
//  3. Price bucket (half-open intervals, top bucket unbounded)
//  4. Stable sort
//
// FilteredCount reflects stages 1-3 only, so the caller can render
// "N of M products" without re-deriving.
//
// # Tolerated Input
//
// Malformed prices parse to zero and missing ratings or review counts compare
// as zero. One bad record never blanks the whole view.
package catalog
