// Package ui holds the plain terminal output of the imgharvest CLI: colored
// messages, the progress line, run reports and desktop notifications. The
// interactive full-screen view lives in the tui subpackage.
package ui
