// Command roasting runs the startup-roasting HTTP service: it fetches a
// submitted website, extracts a summary, asks an LLM for a roast in
// Indonesian, and persists roasts and fire votes.
package main
