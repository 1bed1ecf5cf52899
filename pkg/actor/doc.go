// Copyright 2021 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package actor provides an actor system. Actors are isolated units of state
// that communicate only by messages. Event-based actors are polled by a
// fixed pool of workers, at most one step of an actor runs at a time, and
// different actors run in parallel.
//
// The following diagram shows how a message reaches an event-based actor.
//
//	,------.          ,-------.      ,----.           ,------.          ,-----.
//	|Sender|          |Mailbox|      |Pool|           |Worker|          |Actor|
//	`--+---'          `---+---'      `-+--'           `--+---'          `--+--'
//	   |                  |            |                 |                 |
//	   | Mail(v).Send(to) |            |                 |                 |
//	   | ---------------->|            |                 |                 |
//	   |                  |            |                 |                 |
//	   |        Submit(step) if idle   |                 |                 |
//	   | ----------------------------->|                 |                 |
//	   |                  |            |                 |                 |
//	   |                  |            |   wake up       |                 |
//	   |                  |            |---------------->|                 |
//	   |                  |            |                 |                 |
//	   |                  |  pop urgent, then regular    |                 |
//	   |                  |<---------------------------------------------- |
//	   |                  |            |                 |                 |
//	   |                  |            |                 |  handler(msg)   |
//	   |                  |            |                 | --------------->|
//	   |                  |            |                 |                 |
//
// Delayed messages and request deadlines are kept by a single timer queue
// per system. A request records a pending entry in the tracker of the
// requester. Its outcome, a response, an error or a timeout, is delivered
// to the requester as an envelope and handled by the requester itself, so
// the tracker needs no lock. A delayed message can be withdrawn until it
// leaves, see SendCancelable and Response.Departure.
//
// TypedRef attaches a contract to a Ref: requests of type In answered by an
// Out. SpawnTyped creates an actor that honors it.
//
// Streams bridge flow pipelines across actors. The producer registers a
// pipeline with ToStream, observers attach with ObserveAs and grant credit.
// Items travel in batches and the producer never sends more items than the
// credit it has been granted.
package actor
