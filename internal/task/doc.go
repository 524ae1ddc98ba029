// Package task runs background jobs, currently collection imports, on a
// bounded pool of workers. Job status and results are persisted through a
// TaskStore so clients can poll for them; archives themselves are held only
// in memory.
package task
