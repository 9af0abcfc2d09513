// Package review models the review mockups that reviewcraft exports.
//
// A [Review] is a fictional post on one of fifteen platforms. Each
// [Platform] has a [Style] that sets its brand color, whether a star rating
// and engagement counts are shown, and how long the content may be.
//
// # Files
//
// Reviews are stored as JSON, YAML or TOML, chosen by file extension:
//
//	platform: amazon
//	name: Jane Doe
//	rating: 5
//	content: |
//	  Great product, would buy again.
//
// [Load] decodes, fills defaults (id, username, a ui-avatars.com avatar URL,
// today's date) and validates. Unknown fields are rejected.
//
// # Preview page
//
// [RenderPage] writes a self-contained HTML page whose card has the id
// [ElementID]. This is the element the export pipeline captures. Review
// content is sanitized with bluemonday's UGC policy before it is inlined.
package review
