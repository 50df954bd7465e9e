// Package run persists and processes agent executions. It offers a durable
// run record with retry accounting, pluggable store (memory, MySQL) and queue
// (memory, Redis, RabbitMQ) backends, a submission service, a worker pool
// that claims and executes runs, and an interval scheduler.
package run
