package schema

import "strings"

var abbreviations = map[string]string{
	// Common Nouns
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "ph": "phone",
	"pwd": "password", "passwd": "password",
	"img": "image", "url": "url", "ip": "ip", "zip": "zipcode",
	"msg": "message", "txt": "text", "subj": "subject",
	"usr": "user", "emp": "employee", "dept": "department",
	"cat": "category", "loc": "location", "bal": "balance",
	"guid": "guid", "uuid": "guid",

	// Verbs / Status
	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"upd": "updated", "yn": "yesno", "stat": "status", "sts": "status",
	"typ": "type", "val": "value", "ord": "order", "seq": "sequence",
	"is": "yesno", "flg": "flag",
}

// AnalyzeMeaning guesses what a column holds from its name, e.g.
// "BillGuid" -> "bill guid", "emp_nm" -> "employee name". The fake-data
// generator uses it to pick realistic values.
func AnalyzeMeaning(colName string) string {
	var decodedParts []string
	for _, part := range splitWords(colName) {
		if full, ok := abbreviations[part]; ok {
			decodedParts = append(decodedParts, full)
		} else {
			decodedParts = append(decodedParts, part)
		}
	}
	return strings.Join(decodedParts, " ")
}

// splitWords breaks snake_case and CamelCase names into lower-case words.
func splitWords(name string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case r >= 'A' && r <= 'Z':
			// Start a new word at a lower->upper boundary, or at the last
			// capital of an acronym followed by a lower-case letter.
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9') || (prev >= 'A' && prev <= 'Z' && nextLower) {
					flush()
				}
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}
