// Package service contains the application use cases behind the HTTP API.
//
// ScheduleService turns requests into queued tasks: it resolves the event
// payload (explicit, parsed from free text, or the request body itself),
// checks that a calendar is selected and enqueues the push. It depends on
// narrow interfaces for the parser, the settings and the queue so the API
// never reaches into infrastructure packages directly.
package service
