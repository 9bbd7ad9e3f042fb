/*
Package store governs durable rule set configuration: load/save by version,
automatic timestamped backups before every overwrite, and ordered rule
mutations (insert, update, delete, reorder).

Storage is abstracted behind the Backend interface, keyed by a version
string: one live document per version plus an append-only collection of
timestamped backups. Two backends are provided: FileBackend keeps YAML
documents on disk (rules_<version>.yaml with a backups/ directory), and
SQLiteBackend keeps them in a SQLite database.

The Store serializes mutating operations per version with a single writer
lock; concurrent reads of a stable version need no lock. The store never
validates rule sets itself: validation is the caller's responsibility before
or after mutation, and the store's only invariant is that a version's
content is whatever was last legally saved. A backup failure aborts the
enclosing save so the prior version is never silently lost.
*/
package store
