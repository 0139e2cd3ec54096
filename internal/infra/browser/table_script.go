package browser

import (
	"encoding/json"
	"fmt"
)

// innerTextsExpr evaluates to a JSON array holding the innerText of every
// element matching selector.
func innerTextsExpr(selector string) string {
	return fmt.Sprintf(`JSON.stringify(Array.from(document.querySelectorAll(%s), (el) => el.innerText))`,
		jsString(selector))
}

// rowTextsExpr evaluates to a JSON array with one entry per row; each entry
// lists the innerText of the row's cells.
func rowTextsExpr(rowSelector, cellSelector string) string {
	return fmt.Sprintf(`JSON.stringify(Array.from(document.querySelectorAll(%s), (row) => Array.from(row.querySelectorAll(%s), (cell) => cell.innerText)))`,
		jsString(rowSelector), jsString(cellSelector))
}

// decodeTexts parses the JSON produced by innerTextsExpr or rowTextsExpr.
func decodeTexts[T any](raw string) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("decode element texts: %w", err)
	}
	return out, nil
}
