// Package storage owns the SQLite file backing a memex engine: schema
// creation and migration, pragma tuning, and the writer/reader pool split
// that lets recall and search proceed concurrently while writes stay
// serialized.
package storage
