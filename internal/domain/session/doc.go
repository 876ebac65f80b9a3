// Package session maps terminal ids to live backends and their delivery
// pipelines. The Registry spawns through an injected Spawner, buffers
// output per backend profile, and pushes protocol messages to the
// Endpoint that owns each session. Kill deregisters immediately;
// endpoints that detach take their sessions down with them.
package session
