package core

// error_messages.go maps technical errors to messages a spreadsheet user can
// act on. Each message carries a code that can be quoted to support.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	          Patterns: "file too large", "request body too large"
//	FILE002 - Invalid CSV
//	          Patterns: "invalid csv"
//	FILE003 - Invalid workbook
//	          Patterns: "invalid spreadsheet"
//	FILE004 - No file selected
//	          Patterns: "no file provided"
//	FILE005 - Empty file
//	          Patterns: "empty file"
//	FILE006 - Unsupported format
//	          Patterns: "unsupported file format"
//	FILE007 - Sheet not found
//	          Patterns: "sheet not found"
//
// # Clean Errors (CLN001-CLN099)
//
//	CLN001 - Result expired or unknown
//	         Patterns: "clean result not found"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy
//	         Patterns: "too many clean jobs"
//	UPL002 - Request cancelled
//	         Patterns: "context canceled"
//	UPL003 - Request timed out
//	         Patterns: "context deadline exceeded"
//
// # History Errors (DB001-DB099)
//
//	DB001 - History database unreachable
//	        Patterns: "connection refused", "connection reset"
//	DB002 - History database timed out
//	        Patterns: "timeout"
//
// # Rate Limiting and Access (RATE001, AUTH001)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//	AUTH001 - Missing or invalid API key
//	          Patterns: "missing api key", "invalid api key"
//
// # Default Error (ERR000)
//
// Returned when nothing matches. Check the application log for the
// technical error when a user reports ERR000.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the workbook into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the workbook into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Check that quoted values are closed and the file is comma-separated",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid spreadsheet",
		msg: UserMessage{
			Message: "File could not be read as an Excel workbook",
			Action:  "Open the file in Excel and save it again as .xlsx",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please choose an .xlsx or .csv file to clean",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file has no header row",
			Action:  "Please upload a sheet whose first row holds the column names",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload an .xlsx, .xlsm or .csv file",
			Code:    "FILE006",
		},
	},
	{
		pattern: "sheet not found",
		msg: UserMessage{
			Message: "The requested worksheet does not exist in this workbook",
			Action:  "Check the sheet name or leave it blank to use the first sheet",
			Code:    "FILE007",
		},
	},

	// Clean errors
	{
		pattern: "clean result not found",
		msg: UserMessage{
			Message: "This cleaned file is no longer available",
			Action:  "Upload the original file again to clean it",
			Code:    "CLN001",
		},
	},

	// Upload errors
	{
		pattern: "too many clean jobs",
		msg: UserMessage{
			Message: "System is busy cleaning other files",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL003",
		},
	},

	// History errors
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the history database",
			Action:  "Cleaning still works; history will return once the database is back",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Unable to reach the history database",
			Action:  "Cleaning still works; history will return once the database is back",
			Code:    "DB001",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB002",
		},
	},

	// Rate limiting and access
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "missing api key",
		msg: UserMessage{
			Message: "Missing or invalid API key",
			Action:  "Send a valid key in the X-API-Key header",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "invalid api key",
		msg: UserMessage{
			Message: "Missing or invalid API key",
			Action:  "Send a valid key in the X-API-Key header",
			Code:    "AUTH001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// The first pattern contained in the lowercased error text wins; otherwise
// the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err and wraps it. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
