package core

// error_messages.go maps technical errors to user-facing messages with a
// code support staff can look up.
//
//	BAT001-BAT006  batches, records, issues and jobs
//	FILE001-FILE006 uploaded and stored files
//	VAL001-VAL002  request validation
//	UPL001-UPL003  processing capacity and cancellation
//	AUTH001-AUTH002 authentication
//	LLM001-LLM003  correction service
//	DB001-DB007    database
//	RATE001        throttling
//	ERR000         anything else; check the logs for the technical error
//
// Sentinel errors are matched with errors.Is first. Errors that only
// surface as text (driver messages) fall through to case-insensitive
// substring patterns; the first match wins.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/addrclean/internal/llm"
	"github.com/JonMunkholm/addrclean/internal/storage"
	"github.com/JonMunkholm/addrclean/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrBatchNotFound, UserMessage{"Batch not found", "Check the batch id or refresh the batch list", "BAT001"}},
	{ErrRecordNotFound, UserMessage{"Record not found", "Check the record id", "BAT002"}},
	{ErrIssueNotFound, UserMessage{"Issue not found", "Check the issue id", "BAT003"}},
	{ErrJobNotFound, UserMessage{"Job not found", "Check the job id", "BAT004"}},
	{ErrBatchBusy, UserMessage{"Batch is already being processed", "Wait for the running job to finish", "BAT005"}},
	{ErrAPIKeyNotFound, UserMessage{"API key not found", "Check the key id", "BAT006"}},

	{ErrNoFile, UserMessage{"No file was selected", "Please select a CSV or Excel file to upload", "FILE001"}},
	{ErrFileTooLarge, UserMessage{"File exceeds the maximum size", "Split the file into smaller chunks", "FILE002"}},
	{ErrUnsupportedFileType, UserMessage{"File type is not supported", "Upload a .csv or .xlsx file", "FILE003"}},
	{ErrEmptyFile, UserMessage{"The uploaded file has no data rows", "Add a header row and at least one data row", "FILE004"}},
	{storage.ErrNotFound, UserMessage{"File not found", "The file may have been removed. Export the batch again", "FILE005"}},
	{storage.ErrInvalidKey, UserMessage{"Invalid file path", "Use the URL returned by the upload or export", "FILE006"}},

	{ErrUnsupportedRegion, UserMessage{"Region is not supported", "Choose one of the listed regions", "VAL001"}},
	{ErrInvalidInput, UserMessage{"The request is invalid", "Check the submitted values", "VAL002"}},

	{ErrTooManyJobs, UserMessage{"System is busy processing other batches", "Please wait a moment and try again", "UPL001"}},

	{ErrUnauthorized, UserMessage{"Authentication failed", "Provide a valid, active API key", "AUTH001"}},

	{ErrEnhancementDisabled, UserMessage{"AI enhancement is not available", "Process the batch without AI enhancement", "LLM001"}},
	{llm.ErrRateLimited, UserMessage{"AI service is rate limiting requests", "Please wait a moment before trying again", "LLM002"}},
	{llm.ErrUpstream, UserMessage{"AI service is unavailable", "Try again later or process without AI enhancement", "LLM003"}},

	{store.ErrDuplicate, UserMessage{"This value must be unique but already exists", "Use a different value", "DB002"}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages. More specific patterns come first.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{"A record with this ID already exists", "Review your data for duplicates", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Use a different value", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Use a different value", "DB002"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Refresh and try again", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL002"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or try again later", "UPL003"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},

	{"invalid api key", UserMessage{"Authentication failed", "Provide a valid, active API key", "AUTH001"}},
	{"missing api key", UserMessage{"API key required", "Send the key in the X-API-Key header", "AUTH002"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(fmt.Errorf("load: %w", ErrBatchNotFound))
//	// msg.Code == "BAT001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message. Error returns
// the user message; Unwrap returns the technical error for logging.
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

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
