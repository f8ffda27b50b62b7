// Package almanac feeds a hosted conversational agent's knowledge base
// with externally sourced text.
//
// It provides modular, interface-driven building blocks: a plugin contract
// for content sources, a bounded concurrent execution runner, a versioned
// artifact staging area, and a knowledge synchronizer that reconciles staged
// artifacts against the documents attached to a remote agent.
//
// # Quick Start
//
// Wire the pipeline from its four stages:
//
//	registry := almanac.NewRegistry()
//	registry.Register(weather.New(apiKey, "Unionville"))
//	registry.Register(clock.New())
//
//	store := sqlite.New("almanac.db")
//	kb := elevenlabs.New(apiKey, agentID)
//
//	pipeline := almanac.NewPipeline(
//		registry,
//		almanac.NewRunner(),
//		almanac.NewWriter("staging"),
//		almanac.NewSynchronizer(kb, store),
//	)
//
//	summary, err := pipeline.Run(ctx)
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [Plugin] — named content source with a single Run operation
//   - [KnowledgeBase] — remote document store attached to the agent
//   - [MappingStore] — durable logical-key → document-id mapping
//   - [FactStore] — append-only store for user facts
//
// # Included Implementations
//
// Plugins: plugins/weather (OpenWeatherMap), plugins/news (NewsAPI),
// plugins/clock (current time), plugins/notes (local markdown/PDF notes).
// Storage: store/sqlite (local), store/postgres (pgx pool).
// Remote: kb/elevenlabs (ElevenLabs conversational-AI knowledge base).
// The fact webhook lives in package webhook.
//
// See cmd/almanac for the complete reference binary.
package almanac
