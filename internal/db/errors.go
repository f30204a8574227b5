package db

import (
	"errors"
	"strings"
)

// Op constants map to Valkey/Redis command names for error context.
const (
	OpDel              = "DEL"
	OpEval             = "EVAL"
	OpHDel             = "HDEL"
	OpHGetAll          = "HGETALL"
	OpZRevRangeByScore = "ZREVRANGEBYSCORE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// ScriptError is an error reply raised by a script via redis.error_reply.
// Scripts prefix the message with an upper-case code ("NOTFOUND", "DIM").
type ScriptError struct {
	Script  string
	Code    string
	Message string
}

func (e *ScriptError) Error() string {
	return "script " + e.Script + ": " + e.Code + " " + e.Message
}

// ParseScriptError splits an error reply into code and message.
func ParseScriptError(script, reply string) *ScriptError {
	code, msg, _ := strings.Cut(strings.TrimSpace(reply), " ")
	return &ScriptError{Script: script, Code: code, Message: msg}
}

// ScriptCode returns the script error code of err, or "".
func ScriptCode(err error) string {
	var se *ScriptError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
