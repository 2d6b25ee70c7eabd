// Package service implements the request handlers of both tiers.
//
// GameService runs on the game tier and owns the rules: every
// read-modify-write of a room happens under that room's lock. DataService
// runs on the data tier and maps requests onto a store.Store.
//
// Both services refuse traffic on instances that are not their tier's
// leader with an error matching types.ErrBackingStoreUnavailable, which
// clients retry.
package service
