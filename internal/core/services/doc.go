// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The pipeline is collect -> raw -> clean -> score -> query: the
// Dispatcher owns the first two steps, ScoringService the third,
// QueryService the last, and Runner sequences them for callers.
package services
