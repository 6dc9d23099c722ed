// Package domain holds the records the job pipeline exchanges with its
// collaborators: posts and profiles read from the store, analysis results,
// and realtime events.
package domain
