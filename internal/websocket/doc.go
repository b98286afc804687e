// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package websocket pushes sync status to the field UI.

A Hub owns the set of connected clients; each Client runs a read pump and a
write pump. The hub implements syncstatus.Broadcaster, so the status relay
hands it encoded events and every client receives

	{"type":"sync_status","data":{"kind":"status","status":{...},"at":"..."}}

A new client first receives the current status snapshot. Clients may send
{"type":"ping"} and get {"type":"pong"} back. A client whose buffer fills up
is dropped rather than slowing the others.
*/
package websocket
