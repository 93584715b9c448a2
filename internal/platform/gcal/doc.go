// Package gcal implements calendar.Client on top of the Google Calendar v3
// API. OAuth tokens live in a JSON file; refreshed tokens are written back to
// it, and Authorize runs the installed-app flow to create it.
package gcal
