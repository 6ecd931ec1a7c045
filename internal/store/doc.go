// Package store keeps the latest state of every dashboard view and fans
// updates out to subscribers.
//
//   - [Store]: storage and subscription operations
//   - [MemoryStore]: in-memory implementation with pub/sub
//   - [ViewState]: JSON representation of a view's fetch state
//
// Subscribers receive updates via channels with non-blocking sends; slow
// subscribers miss updates rather than block the pollers.
package store
