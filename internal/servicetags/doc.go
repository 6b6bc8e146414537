// Package servicetags holds the domain types, error kinds and adapter interfaces shared by the
// service tags publishing pipeline.
//
// The pipeline is linear: locate the download link on the discovery page, fetch the JSON dataset
// into staging, partition address prefixes by system service, render the landing page, then publish
// the staged tree over the site directory. Adapters (colly fetcher, local/GCS blob stores, Pub/Sub
// notifier, clock, hasher, id generator) implement the interfaces declared in interfaces.go.
package servicetags
