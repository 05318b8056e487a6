// Package pipeline runs a lineup sync: for each selected source it collects
// artist links, extracts detail pages, merges both into the on-disk snapshot
// and reconciles the snapshot into the store, then runs one enrichment pass.
package pipeline
