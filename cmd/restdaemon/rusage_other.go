//go:build !unix

// SPDX-License-Identifier: GPL-3.0-or-later

package main

// getResourceUsage returns an empty snapshot where getrusage is not available.
func getResourceUsage() (resourceUsage, error) {
	return resourceUsage{}, nil
}
