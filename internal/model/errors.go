// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "errors"

// Validation errors recovered locally by callers (never fatal).
var (
	ErrPersonaNameEmpty   = errors.New("persona name must not be empty")
	ErrPersonaPromptEmpty = errors.New("persona system prompt must not be empty")
)
