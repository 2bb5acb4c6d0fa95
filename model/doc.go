// Package model defines the provider-agnostic abstractions for talking to
// language models.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement Model in sub-packages so agents
// and judges stay decoupled from vendor SDKs.
package model
