// Package collectors provides implementations of the Collector interface
// for the upstream statistical providers. Each collector knows how to
// fetch the raw records of one provider (World Bank, UIS, ...) and
// declares the dataset codes it serves in a static Datasets table.
//
// Collectors are registered with the DatasetRegistry at startup.
package collectors
