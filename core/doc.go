// Package core provides the foundational domain types and interfaces used by
// BotMesh. It defines the core abstractions for:
//
//   - Bots (configured conversational agents bound to one channel identity)
//   - Rule graphs (authored decision structures of typed nodes)
//   - Conversations (per-counterparty turn histories with optional summaries)
//   - Connector states and transport events for channel sessions
//   - Observer events delivered to the client that requested a session
//   - Pluggable stores for bot metadata and conversation history
//
// The package intentionally keeps implementation concerns (transports,
// persistence, routing) out of scope, exposing small interfaces to enable
// custom backends and extensions.
package core
