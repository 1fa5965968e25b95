// Package ingest accepts uploaded item photos and stores them as asset sets.
//
// An upload is checked against the MIME allow-list and the size limit before
// any decoding, given a collision-resistant name of the form
// "{unixMillis}-{6 base36 chars}{ext}" and handed to the derivation engine
// on a bounded worker pool. Files land in the Cards or Comics folder of the
// content directory.
//
// The Regenerator rebuilds derivatives for existing originals.
package ingest
