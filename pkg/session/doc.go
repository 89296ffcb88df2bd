/*
Package session persists router locations across processes.

A Manager serializes access to the snapshot of each session with a local
reference-counted mutex and, optionally, a distributed lock shared by every
replica. Attach hooks a router so that each successful transition updates its
snapshot; Restore moves a new router back to the saved state and params.
*/
package session
