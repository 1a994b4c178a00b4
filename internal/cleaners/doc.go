// Package cleaners provides implementations of the Cleaner interface and
// the parsing helpers they share. A cleaner turns the raw documents of
// one dataset into canonical observations and counts what it drops.
//
// Cleaners are pure and registered with the DatasetRegistry alongside
// the collector serving the same dataset code.
package cleaners
