// Package record persists the kiosk record, a small {name, mode} document
// owned by the settings flow. The core only reads it: the mode decides where
// views are placed in the host window.
package record
