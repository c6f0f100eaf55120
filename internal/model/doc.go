// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package model defines the shared data structures of bioterm: the Message
// record persisted in the sync store, its partial-update Patch, the tagged
// Attachment union (blob URL vs inline record), the session Role, and the
// per-visitor Thread grouping used by the admin panel.
//
// The store owns message identity and ordering. Clients replace their whole
// in-memory list on every delivered snapshot and derive filtered views from
// role and handle; nothing here reorders or deduplicates.
package model
