// Package api implements the HTTP REST API and WebSocket server for Lifelog Core.
//
// This package provides:
//   - Routine CRUD scoped to the authenticated user
//   - Event ingestion that runs the automation pipeline synchronously
//   - Automation log, notification and insight reads
//   - A per-user audit trail of routine changes
//   - A scheduler tick endpoint for host-level cron
//   - WebSocket hub streaming action outcomes on "automation.action_logged"
//
// # Security
//
// Protected routes require an HS256 bearer token; its subject is the user ID.
// WebSocket connections use single-use tickets bound to that user, so one
// user's outcomes are never delivered to another user's sockets.
//
// # Graceful Degradation
//
// The server runs without MQTT or a records reader. Health reports
// "degraded" when the database ping fails.
package api
