// Package emulator is a local stand-in for the remote JSON tree store.
//
// It keeps the whole tree in memory and speaks the same REST dialect the
// client uses: GET, PUT, POST, PATCH and DELETE on paths ending in ".json",
// the orderBy/startAt/endAt/equalTo/limitTo*/shallow query parameters, the
// ".sv" server values, "print=silent", and server-sent event streams with
// put, patch, keep-alive, cancel and auth_revoked events.
//
// It backs the integration tests of the client and cmd/emulator.
package emulator
