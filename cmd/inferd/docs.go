package main

// General API documentation for swaggo. Regenerate docs/ with
// `swag init -g cmd/inferd/docs.go`.
//
// @title           inferd API
// @version         1.0
// @description     On-device inference sessions: chat, speech synthesis and transcription, streamed as NDJSON.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
