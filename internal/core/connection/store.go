// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package connection

import (
	"context"
	"time"
)

// # Profile Data Access

// SavedConnectionRepository defines the data access contract for saved
// connection profiles.
type SavedConnectionRepository interface {

	/*
		Create persists a new connection profile.

		Parameters:
		  - context: context.Context
		  - saved: *SavedConnection

		Returns:
		  - error: apperr.Conflict when an active profile with the same
		    (user, name) exists, or persistence failures
	*/
	Create(context context.Context, saved *SavedConnection) error

	/*
		FindByID returns the profile with the given ID, active or not.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *SavedConnection: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByID(context context.Context, id string) (*SavedConnection, error)

	/*
		ListByUser returns the user's active profiles, newest first.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*SavedConnection: Active profiles
		  - error: Retrieval failures
	*/
	ListByUser(context context.Context, userID string) ([]*SavedConnection, error)

	/*
		TouchLastUsed stamps the profile's lastUsedAt. Only a successful
		connect updates this field.

		Parameters:
		  - context: context.Context
		  - id: string
		  - at: time.Time

		Returns:
		  - error: Persistence failures
	*/
	TouchLastUsed(context context.Context, id string, at time.Time) error

	/*
		Deactivate soft-deletes the profile, freeing its name for reuse.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: Persistence failures
	*/
	Deactivate(context context.Context, id string) error

	/*
		HardDelete permanently removes the profile row.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: Persistence failures
	*/
	HardDelete(context context.Context, id string) error
}
