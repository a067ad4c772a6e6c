// llamachat - terminal chat for a local llama.cpp server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"github.com/jeranaias/llamachat/internal/cli"
)

func main() {
	cli.Execute()
}
