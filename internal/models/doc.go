// Package models defines the core domain records for Taskally.
//
// # Records
//
//   - User: a registered account's profile document
//   - Alliance: a named group of users who share a task list
//   - Task: a unit of work, optionally recurring, optionally owned by an
//     alliance, optionally assigned to specific users
//   - SubTask: a named, independently completable item nested under a Task
//
// # Design Principles
//
//  1. **ID strings, not pointers**: records reference each other by ID to
//     avoid circular references and to match the document-oriented schema.
//  2. **Dual membership lists**: User.AllianceIDs and Alliance.UserIDs
//     mirror each other. Consistency between the two is maintained by the
//     storage layer's atomic join/leave writes, not by foreign keys.
//  3. **Scope by presence**: a Task belongs to an alliance exactly when
//     AllianceID is non-empty; otherwise it is a personal task owned by its
//     assignees.
//
// JSON field names follow the upstream document schema (allianceId,
// assignedUserIds, subTask, ...) so API payloads stay compatible with
// existing clients.
package models
