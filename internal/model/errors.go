package model

import "github.com/memexhq/memex/internal/memexerr"

var (
	errInvalidLimit      = memexerr.New(memexerr.Invalid, "limit must be between 0 and 1000")
	errInvalidOffset     = memexerr.New(memexerr.Invalid, "offset must be non-negative")
	errInvalidDateWindow = memexerr.New(memexerr.Invalid, "date_from must not be after date_to")
	errInvalidImportance = memexerr.New(memexerr.Invalid, "min_importance must be between 0 and 1")
)
