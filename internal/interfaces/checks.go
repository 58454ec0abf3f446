package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/lectern/internal/anchoring"
	"github.com/mrlokans/lectern/internal/audit"
	"github.com/mrlokans/lectern/internal/conversation"
	"github.com/mrlokans/lectern/internal/database"
	"github.com/mrlokans/lectern/internal/database/annotations"
	"github.com/mrlokans/lectern/internal/database/conversations"
	"github.com/mrlokans/lectern/internal/database/readingstate"
	"github.com/mrlokans/lectern/internal/diagram"
	"github.com/mrlokans/lectern/internal/grounding"
	"github.com/mrlokans/lectern/internal/http"
	"github.com/mrlokans/lectern/internal/kv"
	"github.com/mrlokans/lectern/internal/library"
	"github.com/mrlokans/lectern/internal/providers"
	"github.com/mrlokans/lectern/internal/reader"
	"github.com/mrlokans/lectern/internal/settingsstore"
	"github.com/mrlokans/lectern/internal/tasks"
)

// =============================================================================
// Record Storage
// =============================================================================

var _ kv.Store = (*kv.FileStore)(nil)
var _ kv.Store = (*kv.GormStore)(nil)

var _ library.BlobStore = (*library.FileBlobs)(nil)
var _ library.BlobStore = (*library.MinioBlobs)(nil)

var _ anchoring.Store = (*annotations.Repository)(nil)
var _ conversation.HistoryStore = (*conversations.Repository)(nil)

// ReadingState consumers
var _ reader.StateStore = (*readingstate.Repository)(nil)
var _ grounding.StateStore = (*readingstate.Repository)(nil)
var _ tasks.GroundingStates = (*readingstate.Repository)(nil)

// =============================================================================
// Library
// =============================================================================

var _ http.BookStore = (*library.Library)(nil)
var _ reader.BookGetter = (*library.Library)(nil)
var _ grounding.BookSource = (*library.Library)(nil)
var _ tasks.BookLister = (*library.Library)(nil)

// =============================================================================
// Model Providers
// =============================================================================

var _ providers.ConfigSource = (*settingsstore.SettingsStore)(nil)
var _ http.ProviderSettings = (*settingsstore.SettingsStore)(nil)

var _ conversation.Completer = (*providers.Router)(nil)
var _ grounding.Registrar = (*providers.Router)(nil)

var _ conversation.Grounder = (*grounding.Manager)(nil)
var _ tasks.Grounder = (*grounding.Manager)(nil)

// =============================================================================
// Reading Services
// =============================================================================

var _ anchoring.Surface = (*anchoring.RemoteSurface)(nil)
var _ http.ReaderSessions = (*reader.Manager)(nil)

var _ http.ChatService = (*conversation.Service)(nil)
var _ diagram.Asker = (*conversation.Service)(nil)

var _ http.DiagramService = (*diagram.Generator)(nil)
var _ diagram.Renderer = diagram.SourceRenderer{}

var _ diagram.Auditor = (*audit.Auditor)(nil)
var _ tasks.AuditPruner = (*audit.Auditor)(nil)

// =============================================================================
// Infrastructure
// =============================================================================

var _ http.Pinger = (*database.Database)(nil)
var _ http.TaskQueue = (*tasks.Client)(nil)
var _ tasks.Enqueuer = (*tasks.Client)(nil)
