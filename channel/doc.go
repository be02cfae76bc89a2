// Package channel implements the connector owning one external messaging
// transport session per bot. The connector drives a small state machine
// (Idle, Initializing, AwaitingPairing, Online, Disconnected, AuthFailed),
// forwards pairing payloads and status changes to the observer that
// requested the session, and hands every inbound message to the conversation
// router. Connectors never reconnect on their own: leaving Online requires
// an explicit external re-creation.
package channel
