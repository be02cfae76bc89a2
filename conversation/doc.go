// Package conversation provides the in-memory ConversationStore
// implementation plus the history compaction machinery. Histories are
// bounded: once a conversation exceeds the retention threshold the oldest
// turns are folded into a summary string by a pluggable Summarizer, keeping
// prompts recency-biased without growing without bound.
package conversation
