// Package pkg holds the reviewcraft libraries.
//
// An export runs through these packages in order:
//
//	[dom]        locate and clone the review card off-screen
//	[normalize]  inline cross-origin images as data URIs, with fallbacks
//	[raster]     draw the clone to PNG or JPEG through a tiered cascade
//	[sink]       save the file or place the image on the clipboard
//
// [pipeline] sequences them and guarantees cleanup. [browser] implements the
// document, capture and sink interfaces on a headless Chromium page, and
// [server] serves the preview page together with the [proxy] image endpoint.
// [review] models the review card itself.
//
// Supporting packages: [cache] (conversion cache backends), [cascade]
// (ordered fallback strategies), [avatar] (initials avatars), [errors],
// [httputil], [observability], [datauri], [fonts] and [buildinfo].
package pkg
