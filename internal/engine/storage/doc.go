// Package storage persists cache entries as one file per key.
//
// Files live at <store>/<shard-1>/<shard-2>/<normalized-key>.kvc where the
// shard names come from the layout package. Writes go to a uniquely named temp
// file in the target directory and are renamed into place, so readers in this
// or any other process see either the old entry or the new one, never a mix.
// Concurrent writers of the same key within a process are serialized by a
// striped lock.
//
// Missing files are reported through found flags, never as errors. Remove of a
// missing file is a no-op.
package storage
