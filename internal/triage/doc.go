// Package triage provides the business boundary for patient triage scoring.
// It defines the Engine (pure encode-and-classify over every configured
// scoring model), the Service (IDs, persistence, notification), the Store
// interface, and the domain models.
package triage
