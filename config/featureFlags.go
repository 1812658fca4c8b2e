package config

import (
	"os"
	"strings"
)

// OutboxDirectProcessing controls whether the in-process outbox worker runs.
//
// Set via env:
// - OUTBOX_DIRECT_PROCESSING=true|false
//
// Default: true. The direct processor is safe to run alongside the Pub/Sub
// dispatcher because handlers are protected by DB idempotency keys; it acts as
// a backup worker when Pub/Sub delivery is misconfigured.
func OutboxDirectProcessing() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("OUTBOX_DIRECT_PROCESSING")))
	if v == "false" || v == "0" || v == "no" {
		return false
	}
	return true
}

// PubSubPublishing enables publishing committed events to Pub/Sub for external
// workers. Off by default; local/dev environments rely on direct processing.
func PubSubPublishing() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("PUBSUB_PUBLISHING")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
