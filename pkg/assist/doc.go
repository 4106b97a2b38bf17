// Package assist wraps an LLM that pulls structured JSON out of raw markup.
// The image pipeline does not depend on it; the CLI exposes it through the
// "assist extract" command.
package assist
