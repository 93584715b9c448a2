// Package domain defines the error taxonomy shared by the task subsystem,
// the calendar integration and the HTTP layer.
package domain
