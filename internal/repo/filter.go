package repo

import (
	"strings"

	"github.com/memexhq/memex/internal/model"
)

// compileListFilter builds the WHERE clause and bound arguments for a
// plain memory listing. Every value is passed as a bound parameter; no
// filter value is ever interpolated directly into the query string.
func compileListFilter(f *model.QueryFilter) (string, []interface{}) {
	clauses := []string{"user_id = ?"}
	args := []interface{}{f.UserID}

	if f.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.DateFrom != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.DateTo.UTC())
	}
	if f.MinImportance > 0 {
		clauses = append(clauses, "importance >= ?")
		args = append(args, f.MinImportance)
	}
	for key, value := range f.Metadata {
		clauses = append(clauses, "json_extract(metadata, ?) = ?")
		args = append(args, "$."+key, value)
	}

	return strings.Join(clauses, " AND "), args
}

// compileFTSMatch builds the MATCH expression for a keyword-joined query
// (ListByFilter's keyword path, SearchFTS, or SessionRepo.SearchByKeywords)
// from the given keywords, quoting each term so punctuation in user input
// can't be read as FTS5 query syntax.
func compileFTSMatch(keywords []string) string {
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		kw = strings.ReplaceAll(kw, `"`, `""`)
		quoted[i] = `"` + kw + `"`
	}
	return strings.Join(quoted, " ")
}
