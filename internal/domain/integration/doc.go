// Package integration contains the Integration bounded context.
// This context describes how the local subscription store talks to the remote commerce platform.
//
// Key concepts:
//   - CommerceGateway: Port interface for the remote platform's request/response API
//   - RemoteValidationError / ErrRemoteUnavailable: the two remote failure categories
//   - SyncLog: append-only audit record of one batch or reconciliation run
//   - Topic: the closed set of inbound lifecycle notifications
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
