// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package connection

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/constants"
	"github.com/taibuivan/datamira/internal/platform/validate"
	"github.com/taibuivan/datamira/pkg/uuid"
)

// # Commands

// Command is the sum type of every message the connection manager accepts.
// Exactly one field is populated per command.
type Command struct {
	Establish  *EstablishCommand
	Connect    *ConnectCommand
	List       *ListCommand
	Test       *TestCommand
	CloseConn  *CloseCommand
	Delete     *DeleteCommand
	Status     *StatusCommand
	Query      *QueryCommand
	SchemaWalk *SchemaWalkCommand

	// adopt is internal: pool tasks hand freshly opened handles back to the
	// loop so the live map is only ever written from the loop goroutine.
	adopt *adoptCommand
}

// EstablishCommand saves a new profile and opens a live handle for it.
type EstablishCommand struct {
	UserID  string
	Name    string
	Params  Params
	ReplyTo *actor.ReplyTo[*SavedConnection]
}

// ConnectCommand opens a live handle for an existing saved profile.
type ConnectCommand struct {
	UserID       string
	ConnectionID string
	ReplyTo      *actor.ReplyTo[*SavedConnection]
}

// ListCommand returns the user's active saved profiles.
type ListCommand struct {
	UserID  string
	ReplyTo *actor.ReplyTo[[]*SavedConnection]
}

// TestCommand pings the target described by a saved profile or raw params.
type TestCommand struct {
	UserID       string
	ConnectionID string
	Params       *Params
	ReplyTo      *actor.ReplyTo[bool]
}

// CloseCommand closes the live handle and soft-deletes the profile.
type CloseCommand struct {
	UserID       string
	ConnectionID string
	ReplyTo      *actor.ReplyTo[bool]
}

// DeleteCommand hard-deletes the profile and purges its derived indexes.
type DeleteCommand struct {
	UserID       string
	ConnectionID string
	ReplyTo      *actor.ReplyTo[bool]
}

// StatusCommand reports the user's live handles.
type StatusCommand struct {
	UserID  string
	ReplyTo *actor.ReplyTo[[]LiveStatus]
}

// QueryCommand executes one read query on a live handle. Sent by the query
// executor; the manager is the only component that touches the handle.
type QueryCommand struct {
	UserID       string
	ConnectionID string
	Query        string
	MaxRows      int
	ReplyTo      *actor.ReplyTo[*QueryResult]
}

// SchemaWalkCommand snapshots the live target's schema for ingestion.
type SchemaWalkCommand struct {
	UserID       string
	ConnectionID string
	ReplyTo      *actor.ReplyTo[[]SchemaTable]
}

type adoptCommand struct {
	handle  *liveHandle
	replyTo *actor.ReplyTo[bool]
}

// # Index Purger

// IndexPurger removes derived artifacts (vector points, graph edges) when a
// profile is hard-deleted. Both index components implement it.
type IndexPurger interface {
	PurgeConnection(context context.Context, connectionID string) error
}

// # Component

// liveHandle pairs an open driver handle with its profile metadata.
type liveHandle struct {
	connection LiveConnection
	saved      *SavedConnection
	openedAt   time.Time
}

// Manager is the single owner of live database handles.
//
// # Concurrency
//
// The live handle map is read and written only by the component loop.
// Blocking driver calls run on the worker pool with the handle captured;
// freshly opened handles re-enter the loop through the internal adopt
// command before the caller sees a reply.
type Manager struct {
	mailbox    *actor.Mailbox[Command]
	ref        actor.Ref[Command]
	repository SavedConnectionRepository
	pool       *actor.Pool
	purgers    []IndexPurger
	live       map[string]*liveHandle
	onLive     func(userID, connectionID string)
	logger     *slog.Logger
}

// NewManager constructs the connection manager component.
func NewManager(repository SavedConnectionRepository, pool *actor.Pool, logger *slog.Logger, purgers ...IndexPurger) *Manager {
	mailbox, ref := actor.New[Command]("connection-manager", constants.DefaultInboxSize)
	return &Manager{
		mailbox:    mailbox,
		ref:        ref,
		repository: repository,
		pool:       pool,
		purgers:    purgers,
		live:       map[string]*liveHandle{},
		logger:     logger,
	}
}

// OnLive registers a callback fired from the loop after a handle goes live.
// The composition root uses it to kick off schema ingestion. Must be set
// before Run.
func (manager *Manager) OnLive(callback func(userID, connectionID string)) {
	manager.onLive = callback
}

// Ref returns the sending half of the manager's inbox.
func (manager *Manager) Ref() actor.Ref[Command] { return manager.ref }

// Name identifies the component inside the runtime system.
func (manager *Manager) Name() string { return manager.mailbox.Name() }

// Run drives the component loop until the context is cancelled.
func (manager *Manager) Run(context context.Context) {
	actor.Run(context, manager.mailbox, manager.logger, func(command Command) {
		manager.handle(context, command)
	})
}

// Teardown closes every remaining live handle exactly once.
func (manager *Manager) Teardown() {
	shutdownContext, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	for id, handle := range manager.live {
		if err := handle.connection.Close(shutdownContext); err != nil {
			manager.logger.Warn("connection_teardown_close_failed",
				slog.String("connection_id", id),
				slog.Any("error", err),
			)
		}
		delete(manager.live, id)
	}
}

// handle dispatches one command to its operation.
func (manager *Manager) handle(context context.Context, command Command) {
	switch {
	case command.Establish != nil:
		manager.establish(context, command.Establish)
	case command.Connect != nil:
		manager.connect(context, command.Connect)
	case command.List != nil:
		manager.list(context, command.List)
	case command.Test != nil:
		manager.test(context, command.Test)
	case command.CloseConn != nil:
		manager.close(context, command.CloseConn)
	case command.Delete != nil:
		manager.delete(context, command.Delete)
	case command.Status != nil:
		manager.status(command.Status)
	case command.Query != nil:
		manager.query(context, command.Query)
	case command.SchemaWalk != nil:
		manager.schemaWalk(context, command.SchemaWalk)
	case command.adopt != nil:
		manager.install(context, command.adopt)
	default:
		manager.logger.Warn("connection_manager_empty_command")
	}
}

// # Operations

// establish validates the profile, dials the target, and persists it only
// after the dial succeeds.
func (manager *Manager) establish(context context.Context, command *EstablishCommand) {
	validator := &validate.Validator{}
	validator.Required(FieldName, command.Name).
		Custom(FieldKind, !command.Params.Kind.IsValid(), "Must be one of: POSTGRESQL, MYSQL, MONGODB").
		Required(FieldHost, command.Params.Host).
		Port(FieldPort, command.Params.Port).
		Required(FieldDatabaseName, command.Params.DatabaseName).
		Required(FieldUsername, command.Params.Username)
	if err := validator.Err(); err != nil {
		command.ReplyTo.Deliver(nil, err)
		return
	}

	userID := command.UserID
	name := command.Name
	params := command.Params
	reply := command.ReplyTo

	submit(manager, context, reply, func() {
		live, err := Open(context, params)
		if err != nil {
			reply.Deliver(nil, err)
			return
		}

		now := time.Now()
		saved := &SavedConnection{
			ID:                   uuid.New(),
			UserID:               userID,
			Name:                 name,
			Kind:                 params.Kind,
			Host:                 params.Host,
			Port:                 params.Port,
			DatabaseName:         params.DatabaseName,
			Username:             params.Username,
			Password:             params.Password,
			AdditionalProperties: params.AdditionalProperties,
			CreatedAt:            now,
			LastUsedAt:           &now,
			IsActive:             true,
		}

		if err := manager.repository.Create(context, saved); err != nil {
			_ = live.Close(context)
			reply.Deliver(nil, err)
			return
		}

		if !manager.handBack(context, saved, live) {
			reply.Deliver(nil, apperr.ServiceUnavailable("Connection manager is shutting down"))
			return
		}
		reply.Deliver(saved, nil)
	})
}

// connect opens a live handle for a saved profile. Reconnecting an already
// live profile replaces the old handle.
//
// The repository read for a not-yet-live profile happens on the worker pool;
// the loop only consults its own live map.
func (manager *Manager) connect(context context.Context, command *ConnectCommand) {
	saved, isLive, err := manager.resolveLive(command.UserID, command.ConnectionID)
	if err != nil {
		command.ReplyTo.Deliver(nil, err)
		return
	}

	userID := command.UserID
	connectionID := command.ConnectionID
	reply := command.ReplyTo

	submit(manager, context, reply, func() {
		if !isLive {
			var err error
			saved, err = manager.authorizeStored(context, userID, connectionID)
			if err != nil {
				reply.Deliver(nil, err)
				return
			}
		}
		if !saved.IsActive {
			reply.Deliver(nil, apperr.NotFound("Connection"))
			return
		}

		live, err := Open(context, Params{
			Kind:                 saved.Kind,
			Host:                 saved.Host,
			Port:                 saved.Port,
			DatabaseName:         saved.DatabaseName,
			Username:             saved.Username,
			Password:             saved.Password,
			AdditionalProperties: saved.AdditionalProperties,
		})
		if err != nil {
			reply.Deliver(nil, err)
			return
		}

		// A successful connect is the only event that moves lastUsedAt.
		now := time.Now()
		if err := manager.repository.TouchLastUsed(context, saved.ID, now); err != nil {
			manager.logger.Warn("connection_touch_failed",
				slog.String("connection_id", saved.ID),
				slog.Any("error", err),
			)
		}
		saved.LastUsedAt = &now

		if !manager.handBack(context, saved, live) {
			reply.Deliver(nil, apperr.ServiceUnavailable("Connection manager is shutting down"))
			return
		}
		reply.Deliver(saved, nil)
	})
}

// handBack ships a freshly opened handle to the loop and waits for the
// install acknowledgement. Called from pool goroutines only.
func (manager *Manager) handBack(context context.Context, saved *SavedConnection, live LiveConnection) bool {
	handle := &liveHandle{connection: live, saved: saved, openedAt: time.Now()}
	installed := actor.NewReply[bool]()

	if err := manager.ref.Tell(context, Command{adopt: &adoptCommand{handle: handle, replyTo: installed}}); err != nil {
		_ = live.Close(context)
		return false
	}

	if _, err := installed.Wait(context); err != nil {
		return false
	}
	return true
}

// install places the handle into the live map, replacing any prior handle
// for the same profile.
func (manager *Manager) install(context context.Context, command *adoptCommand) {
	id := command.handle.saved.ID
	if previous, ok := manager.live[id]; ok {
		stale := previous.connection
		if err := manager.pool.Submit(context, func() { _ = stale.Close(context) }); err != nil {
			_ = stale.Close(context)
		}
	}
	manager.live[id] = command.handle
	command.replyTo.Deliver(true, nil)

	if manager.onLive != nil {
		manager.onLive(command.handle.saved.UserID, id)
	}
}

func (manager *Manager) list(context context.Context, command *ListCommand) {
	reply := command.ReplyTo
	userID := command.UserID
	submit(manager, context, reply, func() {
		profiles, err := manager.repository.ListByUser(context, userID)
		reply.Deliver(profiles, err)
	})
}

// test pings either a live profile or raw params without saving anything.
func (manager *Manager) test(context context.Context, command *TestCommand) {
	reply := command.ReplyTo

	if command.Params != nil {
		params := *command.Params
		submit(manager, context, reply, func() {
			live, err := Open(context, params)
			if err != nil {
				reply.Deliver(false, err)
				return
			}
			_ = live.Close(context)
			reply.Deliver(true, nil)
		})
		return
	}

	handle, ok := manager.live[command.ConnectionID]
	if !ok || handle.saved.UserID != command.UserID {
		reply.Deliver(false, apperr.NotFound("Connection"))
		return
	}

	connection := handle.connection
	submit(manager, context, reply, func() {
		if err := connection.Ping(context); err != nil {
			reply.Deliver(false, err)
			return
		}
		reply.Deliver(true, nil)
	})
}

// close drops the live handle and soft-deletes the profile. The handle close
// is best-effort; the profile deactivation is the authoritative effect.
func (manager *Manager) close(context context.Context, command *CloseCommand) {
	_, isLive, err := manager.resolveLive(command.UserID, command.ConnectionID)
	if err != nil {
		command.ReplyTo.Deliver(false, err)
		return
	}
	if isLive {
		manager.dropHandle(context, command.ConnectionID)
	}

	userID := command.UserID
	connectionID := command.ConnectionID
	reply := command.ReplyTo
	submit(manager, context, reply, func() {
		if !isLive {
			if _, err := manager.authorizeStored(context, userID, connectionID); err != nil {
				reply.Deliver(false, err)
				return
			}
		}
		if err := manager.repository.Deactivate(context, connectionID); err != nil {
			reply.Deliver(false, err)
			return
		}
		reply.Deliver(true, nil)
	})
}

// delete hard-deletes the profile and purges derived vector and graph data.
func (manager *Manager) delete(context context.Context, command *DeleteCommand) {
	_, isLive, err := manager.resolveLive(command.UserID, command.ConnectionID)
	if err != nil {
		command.ReplyTo.Deliver(false, err)
		return
	}
	if isLive {
		manager.dropHandle(context, command.ConnectionID)
	}

	userID := command.UserID
	connectionID := command.ConnectionID
	reply := command.ReplyTo
	submit(manager, context, reply, func() {
		if !isLive {
			if _, err := manager.authorizeStored(context, userID, connectionID); err != nil {
				reply.Deliver(false, err)
				return
			}
		}
		if err := manager.repository.HardDelete(context, connectionID); err != nil {
			reply.Deliver(false, err)
			return
		}

		// Cascade: derived indexes must not outlive the profile.
		for _, purger := range manager.purgers {
			if err := purger.PurgeConnection(context, connectionID); err != nil {
				manager.logger.Warn("connection_purge_failed",
					slog.String("connection_id", connectionID),
					slog.Any("error", err),
				)
			}
		}

		reply.Deliver(true, nil)
	})
}

func (manager *Manager) status(command *StatusCommand) {
	statuses := make([]LiveStatus, 0)
	for id, handle := range manager.live {
		if handle.saved.UserID != command.UserID {
			continue
		}
		statuses = append(statuses, LiveStatus{
			ConnectionID: id,
			UserID:       handle.saved.UserID,
			Kind:         handle.saved.Kind,
			DatabaseName: handle.saved.DatabaseName,
			ConnectedAt:  handle.openedAt,
		})
	}
	command.ReplyTo.Deliver(statuses, nil)
}

// query runs one read statement on the user's live handle.
func (manager *Manager) query(context context.Context, command *QueryCommand) {
	handle, ok := manager.live[command.ConnectionID]
	if !ok || handle.saved.UserID != command.UserID {
		command.ReplyTo.Deliver(nil, apperr.NotFound("Connection"))
		return
	}

	connection := handle.connection
	query := command.Query
	maxRows := command.MaxRows
	reply := command.ReplyTo

	submit(manager, context, reply, func() {
		result, err := connection.Execute(context, query, maxRows)
		reply.Deliver(result, err)
	})
}

// schemaWalk snapshots the live target's schema.
func (manager *Manager) schemaWalk(context context.Context, command *SchemaWalkCommand) {
	handle, ok := manager.live[command.ConnectionID]
	if !ok || handle.saved.UserID != command.UserID {
		command.ReplyTo.Deliver(nil, apperr.NotFound("Connection"))
		return
	}

	connection := handle.connection
	reply := command.ReplyTo

	submit(manager, context, reply, func() {
		tables, err := connection.WalkSchema(context)
		reply.Deliver(tables, err)
	})
}

// # Helpers

// resolveLive answers ownership from the live map alone, so the loop never
// blocks on storage. A foreign live profile is reported as NotFound, never
// Forbidden, to avoid leaking existence.
func (manager *Manager) resolveLive(userID, connectionID string) (saved *SavedConnection, isLive bool, err error) {
	handle, ok := manager.live[connectionID]
	if !ok {
		return nil, false, nil
	}
	if handle.saved.UserID != userID {
		return nil, true, apperr.NotFound("Connection")
	}
	return handle.saved, true, nil
}

// authorizeStored loads the profile from the repository and enforces
// ownership. It blocks on storage, so it runs on pool goroutines only.
func (manager *Manager) authorizeStored(context context.Context, userID, connectionID string) (*SavedConnection, error) {
	saved, err := manager.repository.FindByID(context, connectionID)
	if err != nil {
		return nil, err
	}
	if saved.UserID != userID {
		return nil, apperr.NotFound("Connection")
	}
	return saved, nil
}

// dropHandle closes and forgets a live handle if present.
func (manager *Manager) dropHandle(context context.Context, connectionID string) {
	handle, ok := manager.live[connectionID]
	if !ok {
		return
	}
	delete(manager.live, connectionID)

	connection := handle.connection
	if err := manager.pool.Submit(context, func() {
		if err := connection.Close(context); err != nil {
			manager.logger.Warn("connection_close_failed",
				slog.String("connection_id", connectionID),
				slog.Any("error", err),
			)
		}
	}); err != nil {
		_ = connection.Close(context)
	}
}

// submit ships a task to the worker pool, failing the ask when the pool is
// saturated so callers see backpressure instead of silence.
func submit[R any](manager *Manager, context context.Context, reply *actor.ReplyTo[R], task func()) {
	if err := manager.pool.Submit(context, task); err != nil {
		var zero R
		reply.Deliver(zero, apperr.ServiceUnavailable("Connection manager is overloaded"))
	}
}
