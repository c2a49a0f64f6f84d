// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build tools
// +build tools

// Package main pins tool dependencies to go.mod.
// See https://go.dev/wiki/Modules#how-can-i-track-tool-dependencies-for-a-module
package main

import (
	// ginkgo CLI runs the integration suites under test/integration:
	//   go run github.com/onsi/ginkgo/v2/ginkgo -tags integration ./test/integration/...
	_ "github.com/onsi/ginkgo/v2/ginkgo"
)
