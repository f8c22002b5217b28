// SPDX-License-Identifier: MPL-2.0

// Package borg drives the borg archiving CLI with typed options and returns
// structured results.
//
// A call flows through five stages:
//
//  1. The option filter turns a typed options struct (or a map decoded into
//     one) into a list of OptionValue.
//  2. BuildArgs assembles the argument vector from the command's tokens,
//     the options and the positionals.
//  3. The process runner executes borg synchronously (Client.Run) or
//     asynchronously (Client.Start).
//  4. The demultiplexer splits stdout and stderr into the output kinds the
//     command's OutputProfile activates for the request.
//  5. The result assembler returns nil, the bare value of a single kind, or
//     an Outputs map keyed by kind.
//
// A nonzero borg exit status is never an error from Run; see Result.Err.
package borg
