// Package database provides the SQLite store for collectible items and
// their images.
//
// Image mutations (add, update, set primary, reorder, remove) are serialized
// per item and run in a single transaction each. Before commit every
// mutation renumbers the item's display orders from 0 and checks that an
// item with images has exactly one primary; a failed check aborts the
// mutation with an invariant violation error.
//
// The schema is managed with goose migrations embedded from migrations/.
// The database uses WAL mode and enforces foreign keys, so deleting an item
// removes its image rows.
package database
