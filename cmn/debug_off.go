// Package cmn provides low-level types and utilities shared by every
// harvestrt package.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
//go:build !debug

package cmn

// Assert is a no-op in production builds.
func Assert(cond bool) {}

// AssertMsg is a no-op in production builds.
func AssertMsg(cond bool, msg string) {}

// AssertNoErr is a no-op in production builds.
func AssertNoErr(err error) {}
