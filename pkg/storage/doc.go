// Package storage provides the PostgreSQL connection manager, the Redis
// client constructor and a small versioned migration runner shared by the
// rbac, tenants and inventory stores.
//
// Reads that tolerate replica lag (grant resolution) go through Replica();
// writes and read-your-write lookups use Primary().
//
// The primary is opened with exponential backoff for up to ConnectWait so
// the service can start before the database is ready. Driver selects
// lib/pq ("postgres") or the pgx stdlib driver ("pgx"); IsUniqueViolation
// understands the errors of both.
package storage
