// Package repo implements the SQL-facing persistence layer: MemoryRepo,
// SessionRepo, and StatsRepo translate model types to and from the schema
// in internal/storage, using bound parameters for every filter value.
package repo
