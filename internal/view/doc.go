// Package view renders the HTML fragments patched into pages over SSE.
package view

//go:generate templ generate
