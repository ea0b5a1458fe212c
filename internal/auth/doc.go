// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

// Package auth provides authentication primitives for Lexiduel.
//
// # Domain Types
//
// Domain types (Account, Member, Session, Challenge) should be created
// using their respective constructors:
//   - NewAccount - creates an Account with a freshly derived password digest
//   - NewMember - creates a Member with a normalized phone number
//   - NewSession - creates a Session with validated owner and expiry
//   - NewChallenge - creates a pending OTP Challenge with its TTL applied
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - password login, registration, session validation, logout
//   - OTPService - OTP challenge request/verify through the gateway
//
// All cross-request state lives in the relational store; neither service
// holds mutable in-process state, so any number of worker processes can
// run them concurrently.
package auth
