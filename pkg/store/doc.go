// Package store provides track.Store backends.
//
// MemoryStore keeps deep copies of values in process. FileStore, SQLiteStore
// and S3Store serialise every value as JSON and hand it back from Retrieve as
// json.RawMessage, which tracked properties decode into their own type.
//
// Every backend reports missing keys from Retrieve with an error wrapping
// track.ErrNotFound, treats Remove of a missing key as a no-op and lists
// its keys in ascending order.
package store
