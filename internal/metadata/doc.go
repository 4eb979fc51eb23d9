// Package metadata defines the domain model of the inventory service: the
// persisted metadata record, the transient fetch snapshot, URL
// canonicalization, page-source truncation, and the fetch error type shared
// by the synchronous and background collection paths.
package metadata
