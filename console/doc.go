// Package console implements the operator console: a line-oriented command
// dispatcher over any reader/writer pair.
//
// Commands carry their own dependencies, injected at construction time;
// the console only matches names and forwards arguments. Matching is
// case-insensitive unless configured otherwise, and "help" is built in.
package console
