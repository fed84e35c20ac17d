// # Error Codes Reference
//
// Errors shown to the operator carry a code they can quote to support.
// Codes are grouped by the collaborator that failed:
//
// # Storage (STO001-STO099)
//
//	STO001 - Storage full: the local cache refused a value over its size limit
//	STO002 - Saved state from another version was ignored
//	STO003 - Catalog database unavailable
//	STO004 - Catalog database timed out
//
// # Deal API (API001-API099)
//
//	API001 - No API key configured
//	API002 - Deal filter options out of range
//	API003 - Deal API rejected the request
//	API004 - Deal API rate limit reached
//	API005 - Search term required
//	API006 - Deal API client not configured
//
// # Extractor (EXT001-EXT099)
//
//	EXT001 - URL is not http(s)
//	EXT002 - Page has no product data
//	EXT003 - Page could not be fetched
//	EXT004 - Page too large
//
// # Selection and columns (SEL001-SEL099)
//
//	SEL001 - Nothing selected
//	SEL002 - Selected products are not in the current list
//	SEL003 - Unknown export column
//	SEL004 - No export columns
//
// # Bulk actions (BLK001-BLK099)
//
//	BLK001 - Deleted remotely but saved products could not be updated
//	BLK002 - Unsupported spreadsheet format
//	BLK003 - Spreadsheet is empty
//	BLK004 - Spreadsheet has no ID or Title column
//	BLK005 - Spreadsheet has too many rows
//	BLK006 - No file provided
//	BLK007 - Nothing to save
//	BLK008 - Too many spreadsheet jobs running
//
// # Validation (VAL001-VAL099)
//
//	VAL001 - Template text is empty
//	VAL002 - Product id is empty
//	VAL003 - Invalid cell value in spreadsheet
//
// # Default (ERR000)
//
//	ERR000 - Unknown error; check the logs for the technical error.
//
// Sentinel errors are matched with errors.Is first. Anything else falls
// through to case-insensitive substring patterns, first match wins.
package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/catalogdesk/internal/bulk"
	"github.com/JonMunkholm/catalogdesk/internal/deals"
	"github.com/JonMunkholm/catalogdesk/internal/extract"
	"github.com/JonMunkholm/catalogdesk/internal/kv"
	"github.com/JonMunkholm/catalogdesk/internal/prefs"
	"github.com/JonMunkholm/catalogdesk/internal/review"
	"github.com/JonMunkholm/catalogdesk/internal/sheet"
	"github.com/JonMunkholm/catalogdesk/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
	Status  int    `json:"-"`
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

var sentinelMessages = []sentinelMessage{
	// Storage
	{kv.ErrQuotaExceeded, UserMessage{"Local storage is full", "Select fewer products or clear saved products", "STO001", http.StatusInsufficientStorage}},
	{kv.ErrSchemaVersion, UserMessage{"Saved settings are from another version", "Save your settings again to replace them", "STO002", http.StatusConflict}},

	// Deal API
	{deals.ErrMissingAPIKey, UserMessage{"No deal API key is configured", "Set DEALS_API_KEY or enter a key", "API001", http.StatusServiceUnavailable}},
	{deals.ErrInvalidOptions, UserMessage{"Deal filter options are out of range", "Check rating (0-5), price and discount (0-100)", "API002", http.StatusBadRequest}},
	{deals.ErrEmptyQuery, UserMessage{"A search term is required", "Enter something to search for", "API005", http.StatusBadRequest}},
	{deals.ErrAPIStatus, UserMessage{"The deal API rejected the request", "Please try again later", "API003", http.StatusBadGateway}},
	{deals.ErrMalformed, UserMessage{"The deal API rejected the request", "Please try again later", "API003", http.StatusBadGateway}},
	{ErrDealsUnavailable, UserMessage{"Deals are not available on this server", "Ask an administrator to configure the deal API", "API006", http.StatusServiceUnavailable}},

	// Extractor
	{extract.ErrUnsupportedURL, UserMessage{"Only http and https product URLs are supported", "Paste the full product page address", "EXT001", http.StatusBadRequest}},
	{extract.ErrNoProductData, UserMessage{"No product information was found on that page", "Check that the URL is a product page", "EXT002", http.StatusUnprocessableEntity}},
	{extract.ErrBodyTooLarge, UserMessage{"The product page is too large", "Try the product's canonical URL", "EXT004", http.StatusUnprocessableEntity}},

	// Selection and columns
	{bulk.ErrNoSelection, UserMessage{"No products are selected", "Select at least one product first", "SEL001", http.StatusBadRequest}},
	{store.ErrNoIDs, UserMessage{"No products are selected", "Select at least one product first", "SEL001", http.StatusBadRequest}},
	{bulk.ErrSelectionNotFound, UserMessage{"None of the selected products are in the current list", "Refresh the list or change your selection", "SEL002", http.StatusBadRequest}},
	{prefs.ErrUnknownColumn, UserMessage{"Unknown export column", "Choose columns from the list", "SEL003", http.StatusBadRequest}},
	{sheet.ErrUnknownColumn, UserMessage{"Unknown export column", "Choose columns from the list", "SEL003", http.StatusBadRequest}},
	{prefs.ErrNoColumns, UserMessage{"No export columns are selected", "Choose at least one column", "SEL004", http.StatusBadRequest}},
	{sheet.ErrNoColumns, UserMessage{"No export columns are selected", "Choose at least one column", "SEL004", http.StatusBadRequest}},
	{bulk.ErrNoColumns, UserMessage{"No export columns are selected", "Choose at least one column", "SEL004", http.StatusBadRequest}},

	// Bulk actions
	{bulk.ErrMirrorUpdate, UserMessage{"Products were deleted but saved products could not be updated", "Save your products for later again", "BLK001", http.StatusInternalServerError}},
	{sheet.ErrUnsupportedFormat, UserMessage{"Unsupported spreadsheet format", "Upload an .xlsx or .csv file", "BLK002", http.StatusBadRequest}},
	{sheet.ErrEmptyFile, UserMessage{"The spreadsheet is empty", "Upload a file with a header row", "BLK003", http.StatusBadRequest}},
	{sheet.ErrMissingKeyColumn, UserMessage{"The spreadsheet needs an ID or Title column", "Add an ID or Title header", "BLK004", http.StatusBadRequest}},
	{sheet.ErrTooManyRows, UserMessage{"The spreadsheet has too many rows", "Split the file into smaller chunks", "BLK005", http.StatusRequestEntityTooLarge}},
	{bulk.ErrNoFile, UserMessage{"No file was selected", "Choose a spreadsheet to import", "BLK006", http.StatusBadRequest}},
	{bulk.ErrNoRecords, UserMessage{"There is nothing to save", "Import or extract products first", "BLK007", http.StatusBadRequest}},
	{ErrTooManyJobs, UserMessage{"Too many imports and exports are running", "Please try again in a few seconds", "BLK008", http.StatusServiceUnavailable}},

	// Validation
	{review.ErrEmptyTemplate, UserMessage{"Template text is empty", "Write a template or reset to the default", "VAL001", http.StatusBadRequest}},
	{prefs.ErrEmptyID, UserMessage{"Product id is empty", "Select a product from the list", "VAL002", http.StatusBadRequest}},
}

// errorPattern matches errors that have no sentinel, such as driver errors.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"connection refused", UserMessage{"Catalog database is unavailable", "Please try again in a few moments", "STO003", http.StatusServiceUnavailable}},
	{"connection reset", UserMessage{"Catalog database is unavailable", "Please try again", "STO003", http.StatusServiceUnavailable}},
	{"context deadline exceeded", UserMessage{"The request timed out", "Please try again", "STO004", http.StatusGatewayTimeout}},
	{"timeout", UserMessage{"The request timed out", "Please try again", "STO004", http.StatusGatewayTimeout}},
	{"not a boolean", UserMessage{"A spreadsheet cell has an invalid value", "Fix the row named in the details and import again", "VAL003", http.StatusBadRequest}},
	{"not a date", UserMessage{"A spreadsheet cell has an invalid value", "Fix the row named in the details and import again", "VAL003", http.StatusBadRequest}},
	{"duplicate id", UserMessage{"The spreadsheet has a duplicate ID", "Remove the duplicate row and import again", "VAL003", http.StatusBadRequest}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "API004", http.StatusTooManyRequests}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts a technical error to a user-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	var dealErr *deals.HTTPError
	if errors.As(err, &dealErr) {
		if dealErr.StatusCode == http.StatusTooManyRequests {
			return UserMessage{"The deal API rate limit was reached", "Please wait a minute and try again", "API004", http.StatusTooManyRequests}
		}
		return UserMessage{"The deal API rejected the request", "Check the API key and try again later", "API003", http.StatusBadGateway}
	}

	var fetchErr *extract.FetchError
	if errors.As(err, &fetchErr) {
		return UserMessage{
			Message: fmt.Sprintf("The product page returned HTTP %d", fetchErr.StatusCode),
			Action:  "Check the URL and try again",
			Code:    "EXT003",
			Status:  http.StatusBadGateway,
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

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
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
