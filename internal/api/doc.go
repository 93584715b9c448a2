// Package api handles incoming HTTP requests, request validation and
// response formatting. It adapts the desktop frontend's JSON protocol to the
// schedule service, the settings store and the calendar client.
package api
