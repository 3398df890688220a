package output

// SchemaVersion is stamped on every NDJSON record as "schemaVersion".
// Bump it when a record type changes incompatibly; `runwatch schema` reports it.
const SchemaVersion = 1
