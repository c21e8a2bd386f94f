// Package core defines the interaction model at the heart of Loom: immutable
// typed interactions stored in an append-only arena, per-agent stacks with
// O(1) forking, the namespaced shared-state blackboard, the persistence
// contract and the error taxonomy shared by every other package.
//
// Everything else in the module (agents, sessions, tools, oracles) is built
// on top of these primitives; core itself depends on nothing but the standard
// library and the logging abstraction.
package core
