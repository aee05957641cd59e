// Package api exposes the task lifecycle over HTTP. Handlers decode and
// validate requests, call the service layer and translate its errors into
// status codes and safe messages.
package api
