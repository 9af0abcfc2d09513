// Package sink delivers rasterized images to the user.
//
// [Downloads] saves a file named "<filename>.<format>", preferring the
// browser's native download and falling back to writing the file directly.
// [ClipboardSink] writes to the system clipboard, trying a PNG image entry,
// then the data URI as text, then the legacy copy command. Each delivery
// fails only when all of its tiers fail. Tiers that wait on the browser are
// bounded by [DefaultTierTimeout]; the local tiers (file write, OSC 52) run
// even after the caller's deadline.
package sink
