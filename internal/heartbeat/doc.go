// Package heartbeat keeps a key alive in a NATS KV bucket whose TTL is a
// few beat intervals long. A crashed process stops beating and its key
// expires; Stop deletes the key right away.
//
// The NATS registrar uses one Beat per registered tier instance.
package heartbeat
