// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation to help contributors find
// extension points and how to implement new functionality.
//
// # Interface Categories
//
// ## Storage Interfaces
//
//   - kv.Store: Per-book JSON records (internal/kv/kv.go)
//   - library.BlobStore: Book bytes and covers (internal/library/blobs.go)
//   - anchoring.Store: Annotation lists (internal/anchoring/surface.go)
//   - conversation.HistoryStore: Conversation histories (internal/conversation/service.go)
//
// ## Model Interfaces
//
//   - providers.ConfigSource: Effective provider configuration (internal/providers/router.go)
//   - conversation.Completer: Model resolution and completion (internal/conversation/service.go)
//   - grounding.Registrar: Document registration (internal/grounding/grounding.go)
//   - diagram.Renderer: Turns extracted source into displayable output (internal/diagram/render.go)
//
// ## Reader Interfaces
//
//   - anchoring.Surface: The rendered book view (internal/anchoring/surface.go)
//
// # Adding a New Provider Family
//
//  1. Add the id to internal/entities/provider.go and a prefix to
//     providers.Family
//
//  2. Add a chat method on providers.Router and dispatch to it from Complete:
//
//     func (r *Router) chatMistral(ctx context.Context, cfg entities.ProviderConfig, messages []entities.Message) (Completion, error)
//
//  3. Add environment defaults in internal/config and a fallback entry in
//     settingsstore.New
//
// # Adding a New Record Backend
//
// Implement kv.Store and select it in entrypoint.Build:
//
//	type RedisStore struct { client *redis.Client }
//
//	var _ kv.Store = (*RedisStore)(nil)
//
// # Adding a New Diagram Renderer
//
// The default renderer hands source to the client. A server-side renderer
// implements diagram.Renderer and is passed to diagram.NewGenerator:
//
//	type SVGRenderer struct{}
//
//	func (SVGRenderer) Render(ctx context.Context, src diagram.Source) (diagram.Rendered, error)
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
