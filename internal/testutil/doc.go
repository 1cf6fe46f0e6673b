// Package testutil provides circuit fixtures shared by package tests.
//
// Fixtures are built fresh on every call so tests may modify them freely.
package testutil
