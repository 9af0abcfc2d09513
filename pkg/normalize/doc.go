// Package normalize makes the images inside an export snapshot safe to
// rasterize.
//
// A canvas that has drawn a cross-origin image without permissive CORS
// headers becomes tainted and cannot be read back. The [Normalizer] rewrites
// every such image source into a data URI before rasterization, trying in
// order:
//
//  1. the [Cache] of earlier conversions, keyed by the original source URL
//  2. drawing the already-loaded element onto a canvas ([Drawer])
//  3. reloading the source anonymously, optionally through the same-origin
//     image proxy, and drawing that ([Loader])
//  4. a synthesized initials avatar (package avatar)
//
// Steps 2 to 4 run as a cascade.Run with a per-attempt timeout. Data URIs
// and same-origin sources are left unchanged. Normalization never fails:
// every failure ends in step 4.
package normalize
