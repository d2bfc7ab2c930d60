package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// TagName is the struct tag read by the Registry.
const TagName = "sqlite"

// fieldTag is the parsed form of one `sqlite:"..."` tag.
type fieldTag struct {
	Column        string
	Ignore        bool
	PrimaryKey    bool
	PKOrder       int
	AutoIncrement bool
	NotNull       bool
	Default       *string
	Type          string
	Collation     string
	MaxLength     int
	Indices       []IndexMembership
}

// parseTag reads a tag of the form
//
//	name,pk=1,autoincrement,notnull,default=0,type=DECIMAL(19,4),collate=BINARY,maxlen=64,index=idx:1,unique=idx2
//
// Commas inside parentheses belong to the option value.
func parseTag(tag string) (fieldTag, error) {
	var ft fieldTag
	if tag == "-" {
		ft.Ignore = true
		return ft, nil
	}

	parts := splitTag(tag)
	if len(parts) == 0 {
		return ft, nil
	}
	ft.Column = strings.TrimSpace(parts[0])

	for _, raw := range parts[1:] {
		opt := strings.TrimSpace(raw)
		if opt == "" {
			continue
		}
		key, value, hasValue := strings.Cut(opt, "=")
		key = strings.ToLower(strings.TrimSpace(key))

		switch key {
		case "pk", "primarykey":
			ft.PrimaryKey = true
			if hasValue {
				n, err := strconv.Atoi(value)
				if err != nil {
					return ft, fmt.Errorf("pk order %q: %w", value, err)
				}
				ft.PKOrder = n
			}
		case "autoincrement", "autoinc":
			ft.AutoIncrement = true
		case "notnull":
			ft.NotNull = true
		case "default":
			v := value
			ft.Default = &v
		case "type":
			if value == "" {
				return ft, fmt.Errorf("type option needs a value")
			}
			ft.Type = value
		case "collate", "collation":
			ft.Collation = value
		case "maxlen", "maxlength":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return ft, fmt.Errorf("invalid maxlen %q", value)
			}
			ft.MaxLength = n
		case "index", "unique":
			m := IndexMembership{Unique: key == "unique"}
			if hasValue {
				name, order, hasOrder := strings.Cut(value, ":")
				m.Name = strings.TrimSpace(name)
				if hasOrder {
					n, err := strconv.Atoi(order)
					if err != nil {
						return ft, fmt.Errorf("index order %q: %w", order, err)
					}
					m.Order = n
				}
			}
			ft.Indices = append(ft.Indices, m)
		default:
			return ft, fmt.Errorf("unknown option %q", key)
		}
	}
	return ft, nil
}

func splitTag(tag string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range tag {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, tag[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, tag[start:])
}
