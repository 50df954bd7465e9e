// Package api exposes the external surfaces of the execution service: a
// WebSocket endpoint compatible with the historical execution clients and a
// small REST API for submitting and inspecting runs.
package api
