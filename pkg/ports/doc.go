/*
Package ports defines the driven ports (interfaces) of the router.

These interfaces decouple the core logic from external implementations, allowing
routers to be fed from various declaration sources and persisted to various
storage backends.

# Key Interfaces

  - StateLoader: Supplies state declarations (e.g., from files or memory).
  - SnapshotStore: Persists and loads the committed location of a session.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
*/
package ports
