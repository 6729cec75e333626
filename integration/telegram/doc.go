// Package telegram implements the broadcast delivery channel on the Telegram
// Bot API.
//
// Messages go out as sendMessage or, when the campaign carries a photo,
// sendPhoto with the text as caption; both use HTML parse mode with link
// previews disabled and optional inline keyboards. Bot API rejections are
// classified for the fan-out: a description mentioning "blocked" or
// "deactivated" maps to the corresponding recipient error, a 429 maps to a
// rate-limit error carrying the API's retry_after, and everything else wraps
// ErrSendFailed.
//
// The base URL is configurable so tests can point the client at an httptest
// server.
package telegram
